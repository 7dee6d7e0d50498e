// Package router assembles the HTTP routing tree and the request pipeline.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vxgate/vxgate/internal/cache"
	"github.com/vxgate/vxgate/internal/handler"
	"github.com/vxgate/vxgate/internal/metrics"
	"github.com/vxgate/vxgate/internal/middleware"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
	"github.com/vxgate/vxgate/internal/service"
)

// Options are the request-facing settings of the pipeline.
type Options struct {
	// APIKey is the shared secret for x-api-key. Empty disables the check.
	APIKey          string
	RateLimit       int64
	RateLimitPeriod time.Duration
	MaxBodyBytes    int64
	// RequestTimeout cancels slow requests. Zero disables it.
	RequestTimeout time.Duration
	HideIDField    bool
	IsDevelopment  bool
	DefaultHeaders map[string]string
	CORS           middleware.CORSConfig
	StaticDir      string
}

// Deps are the constructed components the router wires together.
type Deps struct {
	Logger  *slog.Logger
	Clock   clock.Clock
	Metrics metrics.Recorder
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	Clients *repository.Collection[*model.Client]
	Users   *repository.Collection[*model.User]
	Cache   cache.ClientKeyCache

	ClientService *service.ClientService
	UserService   *service.UserService
	EntityService *service.EntityService

	// Readiness checks. A nil cache check reports "not configured".
	StoreCheck handler.HealthChecker
	CacheCheck handler.HealthChecker
}

// New builds the routing tree.
func New(deps Deps, opts Options) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	h := handler.New(logger)
	health := handler.NewHealthHandler(deps.StoreCheck, deps.CacheCheck)
	clients := handler.NewClientHandler(deps.ClientService, logger, opts.HideIDField)
	users := handler.NewUserHandler(deps.UserService, logger, opts.HideIDField)
	entities := handler.NewEntityHandler(deps.EntityService, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger, recorder))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	// Health endpoints (no auth required)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.DefaultHeaders(middleware.HeaderConfig{
			IsDevelopment: opts.IsDevelopment,
			Extra:         opts.DefaultHeaders,
		}))
		r.Use(middleware.CORSPreflight(opts.CORS))
		r.Use(middleware.APIKey(middleware.APIKeyConfig{
			Logger:  logger,
			Metrics: recorder,
			Key:     opts.APIKey,
		}))
		r.Use(middleware.ClientKey(middleware.ClientKeyConfig{
			Logger:  logger,
			Metrics: recorder,
			Clients: deps.Clients,
			Cache:   deps.Cache,
			Clock:   clk,
		}))
		r.Use(middleware.User(middleware.UserConfig{
			Logger: logger,
			Users:  deps.Users,
			Clock:  clk,
		}))
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Logger:  logger,
			Metrics: recorder,
			Clients: deps.Clients,
			Clock:   clk,
			Limit:   opts.RateLimit,
			Period:  opts.RateLimitPeriod,
		}))

		r.NotFound(h.NotFound)
		r.MethodNotAllowed(h.MethodNotAllowed)

		if opts.IsDevelopment {
			r.Get("/debug", h.Debug)
		}

		r.Route("/client", func(r chi.Router) {
			r.Get("/", clients.Get)
			r.Delete("/", clients.Delete)
		})

		r.Route("/user", func(r chi.Router) {
			r.Get("/", users.Get)
			r.Patch("/", users.Patch)
			r.Delete("/", users.Delete)
			r.Post("/signup", users.Signup)
			r.Post("/login", users.Login)
			r.Post("/logout", users.Logout)
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", entities.List)
			r.Post("/", entities.Create)
			r.Delete("/", entities.BulkDelete)
			r.Get("/{id}", entities.Get)
			r.Patch("/{id}", entities.Patch)
			r.Delete("/{id}", entities.Delete)
			r.Put("/{id}/attachment", entities.PutAttachment)
			r.Get("/{id}/attachment", entities.GetAttachment)
		})
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return r
}
