package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/combust-labs/smartmob-agent/pkg/logging"
)

// statusRecorder wraps a ResponseWriter to observe the status code a
// handler wrote, defaulting to 200 the way net/http itself does when a
// handler never calls WriteHeader explicitly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Hijack passes connection takeover through to the wrapped writer, so
// the attach route's WebSocket upgrade works behind the access log.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("wrapped ResponseWriter does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

// accessLogMiddleware emits exactly one "http.access" event per request
// (spec §4.9 step 2, §8 invariant 6), regardless of whether the handler
// panics, since the deferred emit still fires and repanics afterwards so
// the server's default 500 behaviour is unaffected.
func accessLogMiddleware(sink logging.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			arrived := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				outcome := rec.status
				rerr := recover()
				if rerr != nil {
					outcome = http.StatusInternalServerError
				}
				sink.Info("http.access",
					"path", r.URL.Path,
					"outcome", outcome,
					"duration", time.Since(arrived).Seconds(),
					"request", requestIDFromContext(r.Context()),
					"@timestamp", arrived,
				)
				if rerr != nil {
					panic(rerr)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
