package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// unmatchedRoute labels requests no route claimed, keeping label
// cardinality bounded regardless of the paths clients send.
const unmatchedRoute = "unmatched"

type routeKey struct{}

// SetRoute records the matched route pattern for the current request so
// MetricsMiddleware can label it. Route handlers call it once matched.
func SetRoute(ctx context.Context, route string) {
	if holder, ok := ctx.Value(routeKey{}).(*string); ok {
		*holder = route
	}
}

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - authgate_requests_total (counter): method, status class, and route labels
//   - authgate_request_duration_seconds (histogram): method and route labels
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		route := unmatchedRoute
		ctx := context.WithValue(r.Context(), routeKey{}, &route)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		duration := time.Since(start).Seconds()

		// Build a status class label like "2xx", "4xx", "5xx".
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr, route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
