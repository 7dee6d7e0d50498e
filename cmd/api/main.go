// Package main is the entrypoint for the vxgate API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/blob"
	"github.com/vxgate/vxgate/internal/cache"
	"github.com/vxgate/vxgate/internal/config"
	"github.com/vxgate/vxgate/internal/handler"
	"github.com/vxgate/vxgate/internal/metrics"
	"github.com/vxgate/vxgate/internal/middleware"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
	"github.com/vxgate/vxgate/internal/router"
	"github.com/vxgate/vxgate/internal/server"
	"github.com/vxgate/vxgate/internal/service"
	"github.com/vxgate/vxgate/internal/sweeper"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clk := clock.New()

	// Initialize document store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Initialize cache
	var (
		keyCache   cache.ClientKeyCache = cache.Noop{}
		cacheCheck handler.HealthChecker
		redis      *cache.Cache
	)
	if cfg.RedisURL != "" {
		redis, err = cache.New(ctx, cfg.RedisURL, cache.Options{
			PoolSize: cfg.RedisPoolSize,
			TTL:      cfg.ClientCacheTTL,
		})
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			_ = store.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		keyCache = redis
		cacheCheck = redis
		logger.Info("connected to Redis")
	}

	// Initialize attachment storage
	var blobs blob.Store
	if cfg.AttachmentsEnabled() {
		s3, err := blob.NewS3(ctx, blob.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			_ = store.Close()
			if redis != nil {
				_ = redis.Close()
			}
			return fmt.Errorf("configure attachment storage: %w", err)
		}
		blobs = s3
		logger.Info("attachments enabled", slog.String("bucket", cfg.S3Bucket))
	}

	// Initialize metrics
	var (
		recorder       metrics.Recorder = metrics.NewNoop()
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		recorder = prom
		metricsHandler = prom.Handler()
	}

	// Initialize collections
	clients := repository.NewCollection(store, func() *model.Client { return &model.Client{} })
	users := repository.NewCollection(store, func() *model.User { return &model.User{} })
	entities := repository.NewCollection(store, func() *model.Entity { return &model.Entity{} })

	// Initialize services
	clientService := service.NewClientService(service.ClientServiceConfig{
		Logger:  logger,
		Clients: clients,
		Cache:   keyCache,
		Keys:    auth.TokenGenerator{Length: cfg.ClientKeyLength, Alphabet: cfg.ClientKeyAlphabet},
		Clock:   clk,
		Metrics: recorder,
	})
	userService := service.NewUserService(service.UserServiceConfig{
		Logger:     logger,
		Users:      users,
		Clients:    clients,
		ClientSvc:  clientService,
		Clock:      clk,
		Iterations: cfg.PasswordIterations,
	})
	entityService := service.NewEntityService(service.EntityServiceConfig{
		Logger:   logger,
		Entities: entities,
		Blobs:    blobs,
		Clock:    clk,
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Setup router
	r := router.New(router.Deps{
		Logger:         logger,
		Clock:          clk,
		Metrics:        recorder,
		MetricsHandler: metricsHandler,
		Clients:        clients,
		Users:          users,
		Cache:          keyCache,
		ClientService:  clientService,
		UserService:    userService,
		EntityService:  entityService,
		StoreCheck:     store,
		CacheCheck:     cacheCheck,
	}, router.Options{
		APIKey:          cfg.APIKey,
		RateLimit:       int64(cfg.RateLimit),
		RateLimitPeriod: cfg.RateLimitResetPeriod,
		MaxBodyBytes:    cfg.MaxRequestBodySize,
		RequestTimeout:  cfg.RequestTimeout,
		HideIDField:     cfg.HideIDField,
		IsDevelopment:   cfg.IsDevelopment(),
		DefaultHeaders:  cfg.DefaultHeaders,
		CORS:            cors,
		StaticDir:       cfg.StaticDir,
	})

	// Create server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Closed after the HTTP server drains, store last
	srv.OnShutdown("store", func(context.Context) error { return store.Close() })
	if redis != nil {
		srv.OnShutdown("cache", func(context.Context) error { return redis.Close() })
	}

	// Inactive client sweeper
	sw := sweeper.New(clientService, sweeper.Config{
		Interval:  cfg.SweepInterval,
		Retention: cfg.ClientRetention,
		Logger:    logger,
	})
	if cfg.SweepInterval > 0 {
		if err := sw.Start(ctx); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		srv.OnStop("sweeper", sw.Stop)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"rate_limit", cfg.RateLimit,
	)

	return srv.Run(ctx)
}

// openStore connects the configured document store and applies migrations.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(
			repository.WithUniqueIndex(model.ClientCollection, "key"),
			repository.WithUniqueIndex(model.UserCollection, "username"),
			repository.WithUniqueIndex(model.UserCollection, "emailAddress"),
		), nil

	case config.DriverSQLite:
		store, err := repository.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite database",
				slog.String("error", err.Error()),
				slog.String("path", cfg.SQLitePath),
			)
			return nil, err
		}
		logger.Info("opened sqlite database", slog.String("path", cfg.SQLitePath))
		return store, nil

	default:
		store, err := repository.NewPostgres(ctx, repository.PostgresConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		}, logger)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, fmt.Errorf("connect database: %s", sanitizeError(err, cfg.DatabaseURL))
		}
		logger.Info("connected to database")
		return store, nil
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
