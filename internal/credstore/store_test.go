package credstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestMemory_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, KeyToken, "access-1"))

	got, err := store.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got)

	// Overwrite replaces the value.
	require.NoError(t, store.Set(ctx, KeyToken, "access-2"))

	got, err = store.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got)

	require.NoError(t, store.Remove(ctx, KeyToken))

	_, err = store.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_RemoveAbsentKeyIsNoop(t *testing.T) {
	store := NewMemory()
	assert.NoError(t, store.Remove(context.Background(), "never-set"))
}

func TestSQLite_SetGetRemove(t *testing.T) {
	ctx := context.Background()

	store, err := NewSQLite(":memory:", testLogger())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, KeyRefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, KeyRefreshToken, "refresh-1"))

	got, err := store.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", got)

	// Upsert path.
	require.NoError(t, store.Set(ctx, KeyRefreshToken, "refresh-2"))

	got, err = store.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", got)

	require.NoError(t, store.Remove(ctx, KeyRefreshToken))

	_, err = store.Get(ctx, KeyRefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state", "credentials.db")

	store, err := NewSQLite(dbPath, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, KeyToken, "access-1"))
	require.NoError(t, store.Set(ctx, KeyUserID, "u1"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLite(dbPath, testLogger())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got)

	got, err = reopened.Get(ctx, KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got)
}
