// Package store provides PostgreSQL-backed persistence for the durable
// entities of the chat service: users, match requests, chats, messages,
// blocks and reports. The claim transaction in requests.go is the single
// multi-writer contention point; everything else is last-write-wins.
package store

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRequestGone is returned by ClaimMatch when the candidate's match
// request no longer exists — it was claimed by a concurrent match attempt.
// Callers treat it as "try the next candidate", not as a failure.
var ErrRequestGone = errors.New("store: match request gone")

// Store wraps the database handle with typed accessors for every entity.
type Store struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL, verifies the connection, and returns a ready
// Store.
func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations. Running against an
// up-to-date database is a no-op.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("store: migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
