package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/cache"
	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/metrics"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
)

const maxKeyRetries = 3

// ClientServiceConfig holds ClientService dependencies.
type ClientServiceConfig struct {
	Logger  *slog.Logger
	Clients *repository.Collection[*model.Client]
	Cache   cache.ClientKeyCache
	Keys    auth.TokenGenerator
	Clock   clock.Clock
	Metrics metrics.Recorder
}

// ClientService issues and retires client identities.
type ClientService struct {
	logger  *slog.Logger
	clients *repository.Collection[*model.Client]
	cache   cache.ClientKeyCache
	keys    auth.TokenGenerator
	clock   clock.Clock
	metrics metrics.Recorder
}

// NewClientService creates a new ClientService.
func NewClientService(cfg ClientServiceConfig) *ClientService {
	logger, clk := defaults(cfg.Logger, cfg.Clock)
	if cfg.Cache == nil {
		cfg.Cache = cache.Noop{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &ClientService{
		logger:  logger,
		clients: cfg.Clients,
		cache:   cfg.Cache,
		keys:    cfg.Keys,
		clock:   clk,
		metrics: cfg.Metrics,
	}
}

// Issue creates a client with a fresh random key.
func (s *ClientService) Issue(ctx context.Context) (*model.Client, error) {
	for attempt := 0; attempt < maxKeyRetries; attempt++ {
		key, err := s.keys.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate client key: %w", err)
		}

		client, err := s.clients.Save(ctx, model.NewClient(key, s.clock.Now()))
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.IncClientIssued()
		if err := s.cache.Remember(ctx, key, client.ID()); err != nil {
			s.logger.Warn("failed to cache client key", "client_id", client.ID(), "error", err)
		}
		return client, nil
	}
	return nil, ErrKeyCollision
}

// Delete removes client and evicts its key from the cache.
func (s *ClientService) Delete(ctx context.Context, client *model.Client) error {
	if client == nil {
		return ErrAccessDenied
	}

	removed, err := s.clients.RemoveByID(ctx, client.ID())
	if err != nil {
		return err
	}
	if !removed {
		return repository.ErrNotFound
	}

	s.invalidate(ctx, client.Key)
	return nil
}

// DetachUser clears userId on every client logged in as userID.
func (s *ClientService) DetachUser(ctx context.Context, userID string) (int, error) {
	clients, err := s.clients.FindByField(ctx, "userId", userID)
	if err != nil {
		return 0, err
	}

	for _, c := range clients {
		c.UserID = ""
		if _, err := s.clients.Save(ctx, c); err != nil {
			return 0, err
		}
	}
	return len(clients), nil
}

// Sweep removes clients inactive for longer than retention and returns how
// many were removed.
func (s *ClientService) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-retention)

	stale, err := s.clients.FindWithOptions(ctx,
		repository.Where(repository.Lt("lastActive", document.FormatTime(cutoff))),
		repository.FindOptions{},
	)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, len(stale))
	for i, c := range stale {
		ids[i] = c.ID()
	}

	// Clients touched since the lookup keep a lastActive past the cutoff and survive.
	removed, err := s.clients.Remove(ctx, repository.Where(
		repository.In(document.IDField, ids),
		repository.Lt("lastActive", document.FormatTime(cutoff)),
	))
	if err != nil {
		return 0, err
	}

	for _, c := range stale {
		s.invalidate(ctx, c.Key)
	}
	s.metrics.AddClientsSwept(removed)
	return removed, nil
}

func (s *ClientService) invalidate(ctx context.Context, key string) {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("failed to evict client key", "error", err)
	}
}
