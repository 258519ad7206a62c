package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// streamSink renders events as logfmt-style key-value pairs or as JSON
// objects, one line per event, to an io.Writer.
type streamSink struct {
	mu     sync.Mutex
	out    io.Writer
	asJSON bool
	utc    bool
	closer io.Closer
}

func (s *streamSink) Info(event string, keyvals ...interface{}) {
	fields := fieldsToMap(keyvals)
	fields[timestampKey] = resolveTimestamp(fields, time.Now(), s.utc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asJSON {
		s.writeJSON(event, fields)
		return
	}
	s.writeKV(event, fields)
}

func (s *streamSink) writeJSON(event string, fields map[string]interface{}) {
	record := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		record[k] = v
	}
	record["@event"] = event
	encoded, err := json.Marshal(record)
	if err != nil {
		fmt.Fprintf(s.out, "{\"@event\":%q,\"@timestamp-error\":%q}\n", event, err.Error())
		return
	}
	s.out.Write(encoded)
	s.out.Write([]byte("\n"))
}

func (s *streamSink) writeKV(event string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == timestampKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "@timestamp=%s event=%s", fields[timestampKey], quoteIfNeeded(event))
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, quoteIfNeeded(fmt.Sprintf("%v", fields[k])))
	}
	b.WriteString("\n")
	io.WriteString(s.out, b.String())
}

func (s *streamSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func quoteIfNeeded(value string) string {
	if value == "" || strings.ContainsAny(value, " \t\"=") {
		return strconv.Quote(value)
	}
	return value
}
