package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/vxgate/vxgate/internal/apierror"
)

// Recoverer is a middleware that recovers from panics.
// It logs the panic and answers with the SERVER_ERROR envelope.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				apierror.Write(w, apierror.ServerError, map[string]any{"exception": "panic"})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
