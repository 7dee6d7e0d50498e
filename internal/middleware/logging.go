package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vxgate/vxgate/internal/metrics"
)

// ResponseTimeHeader reports the handler latency in milliseconds.
const ResponseTimeHeader = "X-Response-Time"

// responseWriter wraps http.ResponseWriter to capture status code and stamp
// the response time header before the status line goes out.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	start       time.Time
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK, start: time.Now()}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.Header().Set(ResponseTimeHeader, formatMillis(time.Since(rw.start)))
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64) + "ms"
}

// Logger returns a middleware that logs HTTP requests and records request
// metrics. Uses structured logging with slog.
func Logger(logger *slog.Logger, recorder metrics.Recorder) func(http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Wrap response writer to capture status
			wrapped := wrapResponseWriter(w)
			fields := &requestLog{}
			ctx := context.WithValue(r.Context(), requestLogKey, fields)

			// Process request
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(wrapped.start)
			recorder.ObserveRequest(r.Method, wrapped.status, duration)

			// Build log attributes
			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if fields.clientID != "" {
				attrs = append(attrs, slog.String("client_id", fields.clientID))
			}
			if fields.userID != "" {
				attrs = append(attrs, slog.String("user_id", fields.userID))
			}

			// Log at appropriate level based on status code
			level := slog.LevelInfo
			if wrapped.status >= 500 {
				level = slog.LevelError
			} else if wrapped.status >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(ctx, level, "http request", attrs...)
		})
	}
}
