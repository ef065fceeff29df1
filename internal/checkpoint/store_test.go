package checkpoint

import (
	"context"
	"database/sql"
	"testing"

	"github.com/chainwatch/evmcrawler/internal/db"
	"github.com/chainwatch/evmcrawler/internal/store/migrations"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := t.TempDir() + "/checkpoint_test.db"
	require.NoError(t, migrations.RunMigrations(path))

	conn, err := db.NewSQLiteDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestGetMissReturnsFalse(t *testing.T) {
	store := New(setupTestDB(t))

	_, ok, err := store.Get(context.Background(), "1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	store := New(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "1", 1010))

	n, ok, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1010), n)
}

func TestSetOverwritesPreviousValue(t *testing.T) {
	store := New(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "1", 1010))
	require.NoError(t, store.Set(ctx, "1", 1017))

	n, ok, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1017), n)
}

func TestCheckpointsAreChainScoped(t *testing.T) {
	store := New(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "1", 1010))
	require.NoError(t, store.Set(ctx, "137", 500))

	n1, _, err := store.Get(ctx, "1")
	require.NoError(t, err)
	n137, _, err := store.Get(ctx, "137")
	require.NoError(t, err)

	require.Equal(t, uint64(1010), n1)
	require.Equal(t, uint64(500), n137)
}
