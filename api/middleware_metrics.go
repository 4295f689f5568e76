package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlowRequestThreshold is the duration above which a request is logged
const SlowRequestThreshold = time.Second

var untracedPaths = map[string]bool{
	"/api/v1/metrics/summary":      true,
	"/api/v1/metrics/slow-queries": true,
	"/health":                      true,
	"/ws/creators":                 true,
}

// MetricsMiddleware tracks request timing and store calls into mc
func MetricsMiddleware(mc *MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if untracedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestID := uuid.New().String()
			w.Header().Set("X-Request-ID", requestID)

			ctx := WithRequestTrace(r.Context(), &RequestTrace{
				RequestID: requestID,
				Method:    r.Method,
				Path:      r.URL.Path,
				StartTime: start,
				DBQueries: make([]DBQueryTrace, 0),
			})
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			trace := snapshotTrace(ctx)
			trace.EndTime = time.Now()
			trace.TotalDuration = trace.EndTime.Sub(start)
			trace.Status = wrapped.statusCode
			if wrapped.statusCode >= 400 {
				trace.Error = http.StatusText(wrapped.statusCode)
			}
			mc.RecordTrace(trace)

			if trace.TotalDuration > SlowRequestThreshold {
				zap.S().Warnw("slow request detected",
					"requestId", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"duration", trace.TotalDuration,
					"status", trace.Status,
					"dbQueries", len(trace.DBQueries),
					"dbTime", trace.DBTotalTime,
				)
			}
		})
	}
}

// responseWriter captures the status code and supports WebSocket upgrades
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
