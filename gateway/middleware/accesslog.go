package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"granary/observability"
)

// AccessLogger emits one structured log line per request and feeds the shared
// module metrics so the gateway shows up next to the RPC surface on
// dashboards.
type AccessLogger struct {
	logger *slog.Logger
}

func NewAccessLogger(logger *slog.Logger) *AccessLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessLogger{logger: logger.With("component", "gateway")}
}

// Middleware wraps next with status recording, latency measurement, and the
// access log line. The route label keeps metric cardinality bounded; use the
// route pattern, never the raw path.
func (a *AccessLogger) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)
			observability.ModuleMetrics().Observe("gateway", route, recorder.status, duration)
			a.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration_ms", float64(duration.Microseconds())/1000.0,
				"client", clientID(r),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
