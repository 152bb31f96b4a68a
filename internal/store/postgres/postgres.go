// Package postgres implements the store contract on PostgreSQL. It is the
// durable backend for multi-process deployments; the claim is a single
// conditional UPDATE so lease exclusivity holds across workers.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Store provides a PostgreSQL-backed implementation of store.Store plus the
// optional LeaseRecoverer and HireDeleter capabilities.
type Store struct {
	db *sql.DB
}

// New connects to PostgreSQL, verifies the connection, and runs pending
// migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
