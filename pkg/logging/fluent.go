package logging

import (
	"net/url"
	"time"

	fluent "github.com/fluent/fluent-logger-golang/v2/fluent"
)

// fluentSink pushes events to an external forwarder over TCP using
// MessagePack, per the v0 forward protocol. The forwarder path always
// stamps events in UTC regardless of the --utc flag: see the open
// question recorded in DESIGN.md.
type fluentSink struct {
	client *fluent.Fluent
	tag    string
}

func newFluentSink(u *url.URL) (Sink, error) {
	host, port, err := fluentHostPort(u)
	if err != nil {
		return nil, err
	}
	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
	})
	if err != nil {
		return nil, err
	}
	return &fluentSink{client: client, tag: fluentTag(u)}, nil
}

func (f *fluentSink) Info(event string, keyvals ...interface{}) {
	fields := fieldsToMap(keyvals)
	now := time.Now().UTC()
	fields[timestampKey] = resolveTimestamp(fields, now, true)
	fields["@event"] = event
	// Errors from the forwarder are not actionable from the caller's
	// perspective: the agent keeps running with best-effort delivery.
	_ = f.client.PostWithTime(f.tag, now, fields)
}

func (f *fluentSink) Close() error {
	return f.client.Close()
}
