// Package pgvector implements the long-term store on PostgreSQL with
// the pgvector extension. This is the production store.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Store persists user facts in a single table with a vector column.
//
// Ranking uses L2 distance (the <-> operator); ties are broken by
// insertion order. The (user_id, memory_text) unique constraint makes
// Save idempotent per text.
type Store struct {
	db         *sql.DB
	dimensions int
}

// Config contains PostgreSQL connection settings.
type Config struct {
	DSN          string
	Dimensions   int
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// DefaultConfig returns sensible defaults for everything but the DSN.
func DefaultConfig() Config {
	return Config{
		Dimensions:   1536,
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		ConnLifetime: 5 * time.Minute,
	}
}

// New opens the database, verifies connectivity, and bootstraps the
// schema. Any failure here is fatal to startup: the bot refuses to
// serve with a half-initialized memory layer.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pgvector: dimensions must be positive, got %d", cfg.Dimensions)
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dimensions: cfg.Dimensions}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_memories (
			id          uuid PRIMARY KEY,
			user_id     bigint NOT NULL,
			memory_text text NOT NULL,
			embedding   vector(%d) NOT NULL,
			created_at  timestamptz NOT NULL DEFAULT now(),
			UNIQUE (user_id, memory_text)
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS user_memories_user_idx ON user_memories (user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate user_memories: %w", err)
		}
	}
	return nil
}

// Count returns the number of retained records for a user.
func (s *Store) Count(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM user_memories WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return count, nil
}

// Save inserts a record; a duplicate (user, text) pair is a no-op via
// ON CONFLICT DO NOTHING.
func (s *Store) Save(ctx context.Context, userID int64, text string, embedding []float32) error {
	if len(embedding) != s.dimensions {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(embedding), s.dimensions)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_memories (id, user_id, memory_text, embedding)
		 VALUES ($1, $2, $3, $4::vector)
		 ON CONFLICT (user_id, memory_text) DO NOTHING`,
		uuid.New().String(), userID, text, encodeVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// Query returns up to limit texts ordered by ascending L2 distance,
// ties broken by insertion order (earliest first).
func (s *Store) Query(ctx context.Context, userID int64, embedding []float32, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_text FROM user_memories
		 WHERE user_id = $1
		 ORDER BY embedding <-> $2::vector, created_at, id
		 LIMIT $3`,
		userID, encodeVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return texts, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeVector renders the pgvector input literal: "[v1,v2,...]".
func encodeVector(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteByte(']')
	return sb.String()
}
