// Package redis implements the short-term dialogue buffer on a Redis
// list per user: LPUSH the newest turn, LTRIM to the bound, LRANGE to
// read. The buffer is volatile and lossy by design.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fIIame/NeurooAiBot/core"
)

// Store keeps the last Limit turns per user under chat:{id}:history.
type Store struct {
	client goredis.UniversalClient
	limit  int
}

// Config holds Redis connection settings for the buffer.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Limit is the maximum number of buffered turns per user.
	// Default: 10.
	Limit int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Limit:        10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// New connects to Redis and verifies the connection. A dead Redis at
// startup is a configuration error and fails loudly.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Store{client: client, limit: cfg.Limit}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client goredis.UniversalClient, limit int) *Store {
	if limit <= 0 {
		limit = 10
	}
	return &Store{client: client, limit: limit}
}

// Append pushes a turn and trims the buffer to its bound.
func (s *Store) Append(ctx context.Context, userID int64, turn core.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := historyKey(userID)
	if err := s.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push turn: %w", err)
	}
	if err := s.client.LTrim(ctx, key, 0, int64(s.limit-1)).Err(); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

// Recent returns the buffered turns oldest-first. A user with no
// history yields an empty slice.
func (s *Store) Recent(ctx context.Context, userID int64) ([]core.Turn, error) {
	raw, err := s.client.LRange(ctx, historyKey(userID), 0, int64(s.limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	// LRANGE yields newest-first (LPUSH order); reverse for a
	// readable chronological transcript.
	turns := make([]core.Turn, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var turn core.Turn
		if err := json.Unmarshal([]byte(raw[i]), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func historyKey(userID int64) string {
	return fmt.Sprintf("chat:%d:history", userID)
}
