package pgvector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeVector(t *testing.T) {
	require.Equal(t, "[0.5,-1,0.25]", encodeVector([]float32{0.5, -1, 0.25}))
	require.Equal(t, "[]", encodeVector(nil))
}

// unitVector is a 1536-dim basis vector, matching the store's default
// schema so the smoke test runs against an existing table.
func unitVector(hot int) []float32 {
	v := make([]float32, 1536)
	v[hot] = 1
	return v
}

// TestStoreSmoke exercises the real SQL contract (idempotent save,
// ranking, tie-breaks) against a live database. Skipped unless
// DATABASE_URL is set.
func TestStoreSmoke(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.DSN = dsn
	store, err := New(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	// A fresh user id per run keeps reruns independent.
	userID := time.Now().UnixNano()
	t.Cleanup(func() {
		_, _ = store.db.ExecContext(context.Background(),
			`DELETE FROM user_memories WHERE user_id = $1`, userID)
	})

	count, err := store.Count(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, store.Save(ctx, userID, "likes blue", unitVector(0)))
	require.NoError(t, store.Save(ctx, userID, "lives in Lisbon", unitVector(1)))
	require.NoError(t, store.Save(ctx, userID, "allergic to nuts", unitVector(2)))

	// Duplicate text is a no-op, even with a different embedding.
	require.NoError(t, store.Save(ctx, userID, "likes blue", unitVector(3)))
	count, err = store.Count(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// Query at the first record's embedding: it is at distance 0, the
	// other two tie at distance sqrt(2) and break by insertion order.
	texts, err := store.Query(ctx, userID, unitVector(0), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"likes blue", "lives in Lisbon"}, texts)

	// Dimension mismatch is rejected before touching the database.
	require.Error(t, store.Save(ctx, userID, "bad vector", []float32{1, 2, 3}))
}
