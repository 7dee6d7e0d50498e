//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vxgate/vxgate/internal/testutil"
)

func newPostgresTestStore(t *testing.T) Store {
	t.Helper()
	dsn := testutil.RequireEnv(t, "TEST_DATABASE_URL")
	ctx := context.Background()

	s, err := NewPostgres(ctx, PostgresConfig{URL: dsn, MaxConns: 4}, testLogger())
	require.NoError(t, err)

	unlock, err := testutil.AcquireDBLock(ctx, s.pool)
	require.NoError(t, err)

	_, err = s.pool.Exec(ctx, "DELETE FROM documents")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = unlock()
		_ = s.Close()
	})
	return s
}

func TestIntegrationPostgresStore(t *testing.T) {
	runStoreContract(t, newPostgresTestStore)
}

func TestIntegrationPostgresMigrations_Idempotent(t *testing.T) {
	dsn := testutil.RequireEnv(t, "TEST_DATABASE_URL")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := NewPostgres(ctx, PostgresConfig{URL: dsn}, testLogger())
		require.NoError(t, err)
		require.NoError(t, s.Ping(ctx))
		require.NoError(t, s.Close())
	}
}
