package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/vxgate/vxgate/internal/apierror"
	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/cache"
	"github.com/vxgate/vxgate/internal/metrics"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
)

// DefaultAnonymousPath is the only route reachable without a client key.
const DefaultAnonymousPath = "/api/client"

// APIKeyConfig holds configuration for the shared-secret check.
type APIKeyConfig struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	// Key is the expected x-api-key value. Empty disables the check.
	Key string
}

// APIKey returns a middleware that compares the x-api-key header with the
// configured secret in constant time.
func APIKey(cfg APIKeyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !auth.SecretsEqual(r.Header.Get(APIKeyHeader), cfg.Key) {
				reject(w, r, cfg.Logger, cfg.Metrics, apierror.InvalidAPIKey, "api_key_mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKeyConfig holds configuration for client key resolution.
type ClientKeyConfig struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	Clients *repository.Collection[*model.Client]
	Cache   cache.ClientKeyCache
	Clock   clock.Clock
	// AnonymousPath is reachable with GET and no key. Defaults to DefaultAnonymousPath.
	AnonymousPath string
}

// ClientKey returns a middleware that resolves the x-api-client-key header
// to a Client, counts the call and attaches the client to the context.
func ClientKey(cfg ClientKeyConfig) func(http.Handler) http.Handler {
	if cfg.Cache == nil {
		cfg.Cache = cache.Noop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.AnonymousPath == "" {
		cfg.AnonymousPath = DefaultAnonymousPath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values := r.Header.Values(ClientKeyHeader)
			if len(values) == 0 {
				if isAnonymous(r, cfg.AnonymousPath) {
					next.ServeHTTP(w, r)
					return
				}
				reject(w, r, cfg.Logger, cfg.Metrics, apierror.InvalidClientKey, "missing_client_key")
				return
			}

			key := values[0]
			if key == "" {
				reject(w, r, cfg.Logger, cfg.Metrics, apierror.InvalidClientKey, "empty_client_key")
				return
			}

			client, err := resolveClient(r, cfg, key)
			if errors.Is(err, repository.ErrNotFound) {
				reject(w, r, cfg.Logger, cfg.Metrics, apierror.InvalidClientKey, "unknown_client_key")
				return
			}
			if err != nil {
				cfg.Logger.Error("client lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				reject(w, r, nil, cfg.Metrics, apierror.PersistenceError, "client_lookup")
				return
			}

			client.Touch(cfg.Clock.Now())
			if _, err := cfg.Clients.Save(r.Context(), client); err != nil {
				cfg.Logger.Error("client save failed",
					slog.String("error", err.Error()),
					slog.String("client_id", client.ID()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				reject(w, r, nil, cfg.Metrics, apierror.PersistenceError, "client_save")
				return
			}

			annotateClient(r.Context(), client.ID())
			ctx := auth.ContextWithClient(r.Context(), client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveClient tries the key cache first and falls back to the store.
// Stale cache entries are dropped.
func resolveClient(r *http.Request, cfg ClientKeyConfig, key string) (*model.Client, error) {
	ctx := r.Context()

	if id, ok := cfg.Cache.Lookup(ctx, key); ok {
		client, err := cfg.Clients.FindByID(ctx, id)
		if err == nil && auth.SecretsEqual(client.Key, key) {
			return client, nil
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err := cfg.Cache.Invalidate(ctx, key); err != nil {
			cfg.Logger.Debug("client key cache evict failed", slog.String("error", err.Error()))
		}
	}

	client, err := cfg.Clients.FindOneByField(ctx, "key", key)
	if err != nil {
		return nil, err
	}

	if err := cfg.Cache.Remember(ctx, key, client.ID()); err != nil {
		cfg.Logger.Debug("client key cache write failed", slog.String("error", err.Error()))
	}
	return client, nil
}

func isAnonymous(r *http.Request, path string) bool {
	if r.Method != http.MethodGet {
		return false
	}
	p := r.URL.Path
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return strings.EqualFold(p, path)
}

// UserConfig holds configuration for user resolution.
type UserConfig struct {
	Logger *slog.Logger
	Users  *repository.Collection[*model.User]
	Clock  clock.Clock
}

// User returns a middleware that loads the user a client is logged in as.
// It never fails the request: lookup and save errors are logged and the
// request continues without a user.
func User(cfg UserConfig) func(http.Handler) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := auth.ClientFromContext(r.Context())
			if client == nil || client.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := cfg.Users.FindByID(r.Context(), client.UserID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					cfg.Logger.Error("user lookup failed",
						slog.String("error", err.Error()),
						slog.String("client_id", client.ID()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			user.LastActive = cfg.Clock.Now().UTC()
			if _, err := cfg.Users.Save(r.Context(), user); err != nil {
				cfg.Logger.Error("user save failed",
					slog.String("error", err.Error()),
					slog.String("user_id", user.ID()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}

			annotateUser(r.Context(), user.ID())
			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
