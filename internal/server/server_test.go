package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func testServer(h http.Handler) *Server {
	return New(h, Options{Port: 0, ShutdownTimeout: 5 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServer_ServesUntilCancelled(t *testing.T) {
	s := testServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + s.Addr())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ShutdownOrder(t *testing.T) {
	s := testServer(http.NotFoundHandler())

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	s.OnShutdown("store", record("store"))
	s.OnShutdown("cache", record("cache"))
	s.OnStop("sweeper", record("sweeper"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, []string{"sweeper", "cache", "store"}, order)
}

func TestServer_ShutdownAggregatesErrors(t *testing.T) {
	s := testServer(http.NotFoundHandler())

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := 0
	s.OnShutdown("a", func(context.Context) error { ran++; return errA })
	s.OnShutdown("b", func(context.Context) error { ran++; return errB })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)

	require.Error(t, err)
	assert.Equal(t, 2, ran)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, multierr.Errors(err), 2)
}
