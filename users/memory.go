package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fIIame/NeurooAiBot/core"
)

// MemoryStore implements Store in process memory. It backs local
// development runs that have no database, and tests.
type MemoryStore struct {
	mu    sync.Mutex
	users map[int64]*core.User
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*core.User)}
}

func (s *MemoryStore) Ensure(_ context.Context, id int64, firstName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		s.users[id] = &core.User{
			ID:        id,
			FirstName: firstName,
			CreatedAt: time.Now(),
		}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("users: unknown user %d", id)
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) Activate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("users: unknown user %d", id)
	}
	u.Activated = true
	return nil
}

func (s *MemoryStore) IsActivated(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	return u.Activated, nil
}
