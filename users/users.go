// Package users owns user identity and the activation flag the memory
// subsystem gates on.
package users

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/fIIame/NeurooAiBot/core"
)

// Store is the user registry.
type Store interface {
	// Ensure creates the user on first contact (inactive) and is a
	// no-op afterwards.
	Ensure(ctx context.Context, id int64, firstName string) error

	// Get returns the user, or an error if unknown.
	Get(ctx context.Context, id int64) (*core.User, error)

	// Activate flips the activation flag.
	Activate(ctx context.Context, id int64) error

	// IsActivated reports the activation flag. Unknown users are not
	// activated.
	IsActivated(ctx context.Context, id int64) (bool, error)
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle and bootstraps the
// users table.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS users (
		id         bigint PRIMARY KEY,
		first_name varchar(100) NOT NULL DEFAULT '',
		activated  boolean NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ensure(ctx context.Context, id int64, firstName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		id, firstName,
	)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*core.User, error) {
	var user core.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, activated, created_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.FirstName, &user.Activated, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) Activate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET activated = true WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsActivated(ctx context.Context, id int64) (bool, error) {
	var activated bool
	err := s.db.QueryRowContext(ctx,
		`SELECT activated FROM users WHERE id = $1`, id,
	).Scan(&activated)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check activation: %w", err)
	}
	return activated, nil
}
