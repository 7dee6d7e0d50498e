package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/cache"
	"github.com/vxgate/vxgate/internal/config"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
	"github.com/vxgate/vxgate/internal/service"
)

type output struct {
	ClientID string `json:"client_id"`
	Key      string `json:"key"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

func main() {
	var (
		driver      = flag.String("driver", envOr("STORE_DRIVER", config.DriverPostgres), "Document store: postgres or sqlite")
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		sqlitePath  = flag.String("sqlite-path", envOr("SQLITE_PATH", "vxgate.db"), "SQLite database file")
		username    = flag.String("user", "", "Username the issued client is logged in as")
		length      = flag.Int("length", 64, "Client key length")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := openStore(ctx, *driver, *databaseURL, *sqlitePath, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	clients := repository.NewCollection(store, func() *model.Client { return &model.Client{} })
	users := repository.NewCollection(store, func() *model.User { return &model.User{} })

	svc := service.NewClientService(service.ClientServiceConfig{
		Logger:  logger,
		Clients: clients,
		Cache:   cache.Noop{},
		Keys:    auth.TokenGenerator{Length: *length, Alphabet: auth.Alphanumeric},
	})

	client, err := svc.Issue(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue client:", err)
		os.Exit(1)
	}

	out := output{ClientID: client.ID(), Key: client.Key}

	if *username != "" {
		user, err := users.FindOneByField(ctx, "username", strings.ToLower(strings.TrimSpace(*username)))
		if err != nil {
			fmt.Fprintln(os.Stderr, "find user:", err)
			os.Exit(1)
		}
		client.UserID = user.ID()
		if _, err := clients.Save(ctx, client); err != nil {
			fmt.Fprintln(os.Stderr, "attach user:", err)
			os.Exit(1)
		}
		out.UserID = user.ID()
		out.Username = user.Username
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func openStore(ctx context.Context, driver, databaseURL, sqlitePath string, logger *slog.Logger) (repository.Store, error) {
	switch driver {
	case config.DriverSQLite:
		return repository.NewSQLite(ctx, sqlitePath, logger)
	case config.DriverPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		return repository.NewPostgres(ctx, repository.PostgresConfig{URL: databaseURL, MaxConns: 2, MinConns: 1}, logger)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
