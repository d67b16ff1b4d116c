package memory

import (
	"context"
	"time"

	"github.com/fIIame/NeurooAiBot/core"
)

// Record is a single durable fact about a user.
// Records are immutable after creation and unique per (user, text).
type Record struct {
	ID        string
	UserID    int64
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Embedder converts text to a fixed-length vector.
// Implementations: openai (production), mock (testing).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Judge is the model-backed importance decision, consulted only for
// texts the lexical rules could not decide. Implementations must keep
// the call cheap (a few response tokens).
type Judge interface {
	IsImportant(ctx context.Context, text string) (bool, error)
}

// LongTermStore is the durable, similarity-searchable fact store.
// Implementations: pgvector (production), chromem (local/dev).
type LongTermStore interface {
	// Count returns the number of retained records for a user.
	Count(ctx context.Context, userID int64) (int, error)

	// Save inserts a record. Saving a text the user already has stored
	// is a silent no-op; the store guarantees (userID, text) uniqueness.
	Save(ctx context.Context, userID int64, text string, embedding []float32) error

	// Query returns up to limit stored texts ranked by ascending
	// distance to the query embedding, ties broken by insertion order.
	// A user with no records yields an empty slice, not an error.
	Query(ctx context.Context, userID int64, embedding []float32, limit int) ([]string, error)

	// Close releases store resources.
	Close() error
}

// ShortTermStore is the volatile, bounded dialogue buffer.
// Implementation: redis. Both operations are best-effort: an
// unavailable store must be treated by callers as empty history.
type ShortTermStore interface {
	// Append pushes a turn and trims the buffer to its bound,
	// discarding the oldest turns.
	Append(ctx context.Context, userID int64, turn core.Turn) error

	// Recent returns the buffered turns in chronological order
	// (oldest first).
	Recent(ctx context.Context, userID int64) ([]core.Turn, error)
}
