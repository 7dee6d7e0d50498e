package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *repository.MemoryStore
	clients *repository.Collection[*model.Client]
	users   *repository.Collection[*model.User]
	clock   *clock.Mock
	logger  *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore(repository.WithUniqueIndex(model.ClientCollection, "key"))
	mock := clock.NewMock()
	mock.Set(epoch)
	return &fixture{
		store:   store,
		clients: repository.NewCollection(store, func() *model.Client { return &model.Client{} }),
		users:   repository.NewCollection(store, func() *model.User { return &model.User{} }),
		clock:   mock,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (f *fixture) saveClient(t *testing.T, key string, mutate func(*model.Client)) *model.Client {
	t.Helper()
	c := model.NewClient(key, f.clock.Now())
	if mutate != nil {
		mutate(c)
	}
	saved, err := f.clients.Save(context.Background(), c)
	require.NoError(t, err)
	return saved
}

func (f *fixture) reload(t *testing.T, id string) *model.Client {
	t.Helper()
	c, err := f.clients.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// serve runs req through h and reports whether the terminal handler ran.
func serve(h func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, *http.Request) {
	var reached *http.Request
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = r
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	h(final).ServeHTTP(rec, req)
	return rec, reached
}

// withClient attaches c the way ClientKey does.
func withClient(req *http.Request, c *model.Client) *http.Request {
	return req.WithContext(auth.ContextWithClient(req.Context(), c))
}
