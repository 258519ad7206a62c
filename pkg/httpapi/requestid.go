package httpapi

import (
	"context"
	"net/http"

	"github.com/gofrs/uuid"
)

type contextKey string

const requestIDContextKey contextKey = "request-id"

// requestIDHeader is the header clients may set and the server always echoes.
const requestIDHeader = "X-Request-Id"

// requestIDMiddleware reads X-Request-Id, assigning a fresh UUID when
// absent, stores it on the request context, and echoes it back on the
// response (spec §4.9 middleware chain, step 1).
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV4()).String()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFromContext returns the request id stored by
// requestIDMiddleware, or "?" if none is present (spec §4.9: "request id,
// or '?' if absent").
func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return "?"
}
