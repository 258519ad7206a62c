// Package logging implements the agent's structured event sink (C10):
// a pluggable emitter configured at startup from a single endpoint URL,
// rendering events as key-value or JSON text to a stream, or pushing
// them to a Fluentd forwarder.
package logging

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const defaultFluentPort = 24224

const timestampKey = "@timestamp"

// Sink emits structured events. Every event carries an "@timestamp"
// field, defaulted to the time of the call unless the caller already
// supplied one.
type Sink interface {
	// Info emits an event with the given name and a flat list of
	// alternating key/value fields, e.g.:
	//   sink.Info("http.access", "path", "/", "outcome", 200)
	Info(event string, keyvals ...interface{})
	// Close releases any resource held by the sink (open file, forwarder
	// connection). Closing the stdout/stderr sinks is a no-op.
	Close() error
}

// New builds a Sink from an endpoint URL.
//
//   file:///dev/stdout            -> kv or json renderer to stdout
//   file:///dev/stderr            -> kv or json renderer to stderr
//   file:///path/to/file          -> kv or json renderer to an opened file
//   fluent://host[:port]/tag      -> MessagePack forward-protocol records
//
// asJSON selects the renderer used by file:// endpoints; it has no
// effect on fluent:// endpoints, which always serialize as MessagePack.
// utc, when true, renders file:// timestamps in UTC; the fluent://
// forwarder always uses UTC regardless of utc (see DESIGN.md).
func New(endpoint string, asJSON bool, utc bool) (Sink, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid logging endpoint %q: %w", endpoint, err)
	}
	switch parsed.Scheme {
	case "file":
		return newStreamSink(parsed.Path, asJSON, utc)
	case "fluent":
		return newFluentSink(parsed)
	default:
		return nil, fmt.Errorf("unsupported logging endpoint scheme %q", parsed.Scheme)
	}
}

func newStreamSink(path string, asJSON bool, utc bool) (Sink, error) {
	switch path {
	case "/dev/stdout":
		return &streamSink{out: os.Stdout, asJSON: asJSON, utc: utc}, nil
	case "/dev/stderr":
		return &streamSink{out: os.Stderr, asJSON: asJSON, utc: utc}, nil
	default:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed opening log file %q: %w", path, err)
		}
		return &streamSink{out: f, asJSON: asJSON, utc: utc, closer: f}, nil
	}
}

func fluentHostPort(u *url.URL) (string, int, error) {
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("fluent endpoint is missing a host")
	}
	if u.Port() == "" {
		return host, defaultFluentPort, nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return "", 0, fmt.Errorf("invalid fluent port %q: %w", u.Port(), err)
	}
	return host, port, nil
}

func fluentTag(u *url.URL) string {
	tag := u.Path
	if len(tag) > 0 && tag[0] == '/' {
		tag = tag[1:]
	}
	return tag
}

// resolveTimestamp honours a caller-supplied "@timestamp" field when it
// is already an ISO-8601 string or a time.Time (a time.Time is converted
// to UTC when utc is requested); otherwise it stamps the event with now
// (in utc, when requested).
func resolveTimestamp(fields map[string]interface{}, now time.Time, utc bool) string {
	if existing, ok := fields[timestampKey]; ok {
		switch v := existing.(type) {
		case string:
			if _, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return v
			}
		case time.Time:
			if utc {
				v = v.UTC()
			}
			return v.Format(time.RFC3339Nano)
		}
	}
	if utc {
		now = now.UTC()
	}
	return now.Format(time.RFC3339Nano)
}

func fieldsToMap(keyvals []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		fields[key] = keyvals[i+1]
	}
	return fields
}
