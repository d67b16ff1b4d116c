// Package chromem implements the long-term store on chromem-go, an
// embedded pure-Go vector database. It backs local development and
// tests; production deployments use the pgvector store.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// Store keeps one chromem collection per user. Capacity is enforced by
// the admission pipeline, not here; the store only guarantees the
// (user, text) uniqueness invariant.
//
// chromem ranks by cosine similarity. Within this store the metric is
// applied consistently on save and query, with ties broken by
// insertion order.
type Store struct {
	db *chromem.DB

	mu    sync.Mutex
	users map[int64]*userSpace
}

type userSpace struct {
	col     *chromem.Collection
	texts   map[string]struct{}
	nextSeq int
}

// New creates an empty in-memory store.
func New() (*Store, error) {
	return &Store{
		db:    chromem.NewDB(),
		users: make(map[int64]*userSpace),
	}, nil
}

func (s *Store) space(userID int64) (*userSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sp, ok := s.users[userID]; ok {
		return sp, nil
	}

	col, err := s.db.CreateCollection(fmt.Sprintf("user_%d", userID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	sp := &userSpace{
		col:   col,
		texts: make(map[string]struct{}),
	}
	s.users[userID] = sp
	return sp, nil
}

// Count returns the number of retained records for a user.
func (s *Store) Count(ctx context.Context, userID int64) (int, error) {
	sp, err := s.space(userID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(sp.texts), nil
}

// Save inserts a record. A text the user already stored is a no-op.
func (s *Store) Save(ctx context.Context, userID int64, text string, embedding []float32) error {
	sp, err := s.space(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, dup := sp.texts[text]; dup {
		s.mu.Unlock()
		return nil
	}
	seq := sp.nextSeq
	sp.nextSeq++
	sp.texts[text] = struct{}{}
	s.mu.Unlock()

	// Deterministic ID per (user, text): a racing duplicate insert
	// lands on the same document instead of creating a second one.
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%d:%s", userID, text)))

	doc := chromem.Document{
		ID:        id.String(),
		Content:   text,
		Embedding: embedding,
		Metadata: map[string]string{
			"seq":        strconv.Itoa(seq),
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := sp.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query returns up to limit texts ranked most-similar first.
func (s *Store) Query(ctx context.Context, userID int64, embedding []float32, limit int) ([]string, error) {
	sp, err := s.space(userID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	n := limit
	if total := sp.col.Count(); total < n {
		n = total
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := sp.col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return seqOf(results[i]) < seqOf(results[j])
	})

	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Content)
	}
	return texts, nil
}

// Close releases resources. chromem keeps everything in memory.
func (s *Store) Close() error {
	return nil
}

func seqOf(res chromem.Result) int {
	seq, _ := strconv.Atoi(res.Metadata["seq"])
	return seq
}
