package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/blob"
	"github.com/vxgate/vxgate/internal/cache"
	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/metrics"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
)

var epoch = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	clients  *repository.Collection[*model.Client]
	users    *repository.Collection[*model.User]
	entities *repository.Collection[*model.Entity]
	cache    *cache.Memory
	blobs    *blob.MemoryStore
	metrics  *metrics.InMemoryRecorder
	clock    *clock.Mock

	clientSvc *ClientService
	userSvc   *UserService
	entitySvc *EntityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore(
		repository.WithUniqueIndex(model.ClientCollection, "key"),
		repository.WithUniqueIndex(model.UserCollection, "username"),
		repository.WithUniqueIndex(model.UserCollection, "emailAddress"),
	)
	mock := clock.NewMock()
	mock.Set(epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		clients:  repository.NewCollection(store, func() *model.Client { return &model.Client{} }),
		users:    repository.NewCollection(store, func() *model.User { return &model.User{} }),
		entities: repository.NewCollection(store, func() *model.Entity { return &model.Entity{} }),
		cache:    cache.NewMemory(),
		blobs:    blob.NewMemoryStore(),
		metrics:  metrics.NewInMemory(),
		clock:    mock,
	}

	f.clientSvc = NewClientService(ClientServiceConfig{
		Logger:  logger,
		Clients: f.clients,
		Cache:   f.cache,
		Keys:    auth.TokenGenerator{Length: 24, Alphabet: auth.Alphanumeric},
		Clock:   mock,
		Metrics: f.metrics,
	})
	f.userSvc = NewUserService(UserServiceConfig{
		Logger:     logger,
		Users:      f.users,
		Clients:    f.clients,
		ClientSvc:  f.clientSvc,
		Clock:      mock,
		Iterations: 2,
	})
	f.entitySvc = NewEntityService(EntityServiceConfig{
		Logger:   logger,
		Entities: f.entities,
		Blobs:    f.blobs,
		Clock:    mock,
	})
	return f
}

func (f *fixture) issue(t *testing.T) *model.Client {
	t.Helper()
	c, err := f.clientSvc.Issue(context.Background())
	require.NoError(t, err)
	return c
}

func (f *fixture) signup(t *testing.T, username, email, password string) *model.User {
	t.Helper()
	u, err := f.userSvc.Signup(context.Background(), SignupInput{
		Username:     username,
		EmailAddress: email,
		Password:     password,
	})
	require.NoError(t, err)
	return u
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var names []string
	switch e := err.(type) {
	case *PatchError:
		for _, f := range e.Fields {
			names = append(names, f.Field)
		}
	default:
		ve := validationError(t, err)
		for _, f := range ve.Fields {
			names = append(names, f.Field)
		}
	}
	return names
}

func validationError(t *testing.T, err error) *document.ValidationError {
	t.Helper()
	var ve *document.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve
}
