package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/blob"
	"github.com/vxgate/vxgate/internal/cache"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
	"github.com/vxgate/vxgate/internal/service"
)

var epoch = time.Date(2024, 7, 4, 15, 0, 0, 0, time.UTC)

type harness struct {
	clients  *repository.Collection[*model.Client]
	users    *repository.Collection[*model.User]
	entities *repository.Collection[*model.Entity]
	blobs    *blob.MemoryStore
	clock    *clock.Mock

	clientSvc *service.ClientService
	userSvc   *service.UserService

	// attached to every request when set
	client *model.Client
	user   *model.User

	router chi.Router
}

func newHarness(t *testing.T, withBlobs bool) *harness {
	t.Helper()

	store := repository.NewMemoryStore(
		repository.WithUniqueIndex(model.ClientCollection, "key"),
		repository.WithUniqueIndex(model.UserCollection, "username"),
		repository.WithUniqueIndex(model.UserCollection, "emailAddress"),
	)
	mock := clock.NewMock()
	mock.Set(epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		clients:  repository.NewCollection(store, func() *model.Client { return &model.Client{} }),
		users:    repository.NewCollection(store, func() *model.User { return &model.User{} }),
		entities: repository.NewCollection(store, func() *model.Entity { return &model.Entity{} }),
		clock:    mock,
	}

	h.clientSvc = service.NewClientService(service.ClientServiceConfig{
		Logger:  logger,
		Clients: h.clients,
		Cache:   cache.NewMemory(),
		Keys:    auth.TokenGenerator{Length: 32, Alphabet: auth.Alphanumeric},
		Clock:   mock,
	})
	h.userSvc = service.NewUserService(service.UserServiceConfig{
		Logger:     logger,
		Users:      h.users,
		Clients:    h.clients,
		ClientSvc:  h.clientSvc,
		Clock:      mock,
		Iterations: 2,
	})

	entityCfg := service.EntityServiceConfig{Logger: logger, Entities: h.entities, Clock: mock}
	if withBlobs {
		h.blobs = blob.NewMemoryStore()
		entityCfg.Blobs = h.blobs
	}
	entitySvc := service.NewEntityService(entityCfg)

	base := New(logger)
	clients := NewClientHandler(h.clientSvc, logger, true)
	users := NewUserHandler(h.userSvc, logger, true)
	entities := NewEntityHandler(entitySvc, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if h.client != nil {
				ctx = auth.ContextWithClient(ctx, h.client)
			}
			if h.user != nil {
				ctx = auth.ContextWithUser(ctx, h.user)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.NotFound(base.NotFound)
	r.MethodNotAllowed(base.MethodNotAllowed)

	r.Get("/debug", base.Debug)
	r.Get("/client", clients.Get)
	r.Delete("/client", clients.Delete)
	r.Get("/user", users.Get)
	r.Patch("/user", users.Patch)
	r.Delete("/user", users.Delete)
	r.Post("/user/signup", users.Signup)
	r.Post("/user/login", users.Login)
	r.Post("/user/logout", users.Logout)
	r.Get("/entities", entities.List)
	r.Post("/entities", entities.Create)
	r.Delete("/entities", entities.BulkDelete)
	r.Get("/entities/{id}", entities.Get)
	r.Patch("/entities/{id}", entities.Patch)
	r.Delete("/entities/{id}", entities.Delete)
	r.Put("/entities/{id}/attachment", entities.PutAttachment)
	r.Get("/entities/{id}/attachment", entities.GetAttachment)

	h.router = r
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// login issues a client, signs up a user and attaches both to later requests.
func (h *harness) login(t *testing.T) {
	t.Helper()
	rec := h.do(http.MethodPost, "/user/signup", `{"username":"annie","emailAddress":"ann@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	client, err := h.clientSvc.Issue(t.Context())
	require.NoError(t, err)
	user, err := h.userSvc.Login(t.Context(), client, service.LoginInput{Username: "annie", Password: "s3cret"})
	require.NoError(t, err)

	h.client, h.user = client, user
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
