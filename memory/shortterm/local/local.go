// Package local implements the short-term buffer in process memory.
// It backs database-free development runs; production uses the redis
// store.
package local

import (
	"context"
	"sync"

	"github.com/fIIame/NeurooAiBot/core"
)

// Store is a bounded per-user turn buffer, oldest first.
type Store struct {
	mu    sync.Mutex
	limit int
	turns map[int64][]core.Turn
}

// New creates an empty buffer keeping at most limit turns per user.
func New(limit int) *Store {
	if limit <= 0 {
		limit = 10
	}
	return &Store{limit: limit, turns: make(map[int64][]core.Turn)}
}

func (s *Store) Append(_ context.Context, userID int64, turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := append(s.turns[userID], turn)
	if len(buf) > s.limit {
		buf = buf[len(buf)-s.limit:]
	}
	s.turns[userID] = buf
	return nil
}

func (s *Store) Recent(_ context.Context, userID int64) ([]core.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.turns[userID]
	out := make([]core.Turn, len(buf))
	copy(out, buf)
	return out, nil
}
