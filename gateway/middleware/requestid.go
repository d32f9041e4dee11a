package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation ID between clients and the gateway.
const HeaderRequestID = "X-Request-ID"

// ContextKeyRequestID locates the request ID inside a request context.
const ContextKeyRequestID contextKey = "gateway.request-id"

// RequestID assigns every request a correlation ID. An inbound X-Request-ID
// header is honoured so callers can thread their own IDs through; otherwise a
// fresh UUID is minted. The ID is echoed on the response and stored in the
// request context for access logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), ContextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the correlation ID stored by RequestID, or an
// empty string when the middleware did not run.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
