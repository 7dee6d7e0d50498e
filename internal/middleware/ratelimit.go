package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vxgate/vxgate/internal/apierror"
	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/metrics"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
)

// Rate limit response headers.
const (
	RateLimitHeader          = "X-Rate-Limit"
	RateLimitRemainingHeader = "X-Rate-Limit-Remaining"
	RateLimitResetHeader     = "X-Rate-Limit-Reset"
)

// RateLimitConfig holds configuration for the per-client fixed window.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	Clients *repository.Collection[*model.Client]
	Clock   clock.Clock
	// Limit is the number of calls allowed per window.
	Limit int64
	// Period is the window length.
	Period time.Duration
}

// RateLimit returns middleware that enforces a fixed call window per client.
// Must be applied after ClientKey; requests without a client pass through.
//
// The call that starts a new window is not counted against it.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	window := int64(cfg.Period / time.Second)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := auth.ClientFromContext(r.Context())
			if client == nil {
				next.ServeHTTP(w, r)
				return
			}

			now := cfg.Clock.Now()
			elapsed := int64(now.Sub(client.CallsReset) / time.Second)
			if elapsed < 0 {
				elapsed = 0
			}

			setRateLimitHeaders(w, cfg.Limit, max(0, cfg.Limit-client.Calls), max(0, window-elapsed))

			switch {
			case elapsed > window:
				client.ResetWindow(now)
				if _, err := cfg.Clients.Save(r.Context(), client); err != nil {
					cfg.Logger.Error("rate limit window reset failed",
						slog.String("error", err.Error()),
						slog.String("client_id", client.ID()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					reject(w, r, nil, cfg.Metrics, apierror.PersistenceError, "window_reset")
					return
				}
			case client.Calls > cfg.Limit:
				cfg.Metrics.IncRateLimited()
				reject(w, r, cfg.Logger, cfg.Metrics, apierror.RateLimitExceeded, "rate_limit_exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets the window response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit, remaining, reset int64) {
	w.Header().Set(RateLimitHeader, strconv.FormatInt(limit, 10))
	w.Header().Set(RateLimitRemainingHeader, strconv.FormatInt(remaining, 10))
	w.Header().Set(RateLimitResetHeader, strconv.FormatInt(reset, 10))
}
