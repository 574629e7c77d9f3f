package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Age groups partitioning all matching.
const (
	AgeGroupTeen  = "teen"  // 15-17
	AgeGroupAdult = "adult" // 18+
)

// AgeGroupFor derives the age group for an age. The second return value is
// false when the age is below the minimum of 15. age_group is always a pure
// function of age; callers must recompute it whenever age changes.
func AgeGroupFor(age int) (string, bool) {
	switch {
	case age >= 15 && age <= 17:
		return AgeGroupTeen, true
	case age >= 18:
		return AgeGroupAdult, true
	default:
		return "", false
	}
}

// User is a registered (anonymous) participant.
type User struct {
	ID         string    `db:"id"`
	City       string    `db:"city"`
	Age        int       `db:"age"`
	AgeGroup   string    `db:"age_group"`
	Gender     string    `db:"gender"`
	LastActive time.Time `db:"last_active"`
	CreatedAt  time.Time `db:"created_at"`
}

// UpsertUser creates or refreshes a user record. Re-registration overwrites
// city, age, age_group and gender and bumps last_active.
func (s *Store) UpsertUser(ctx context.Context, u *User) error {
	const query = `
		INSERT INTO users (id, city, age, age_group, gender)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			city        = EXCLUDED.city,
			age         = EXCLUDED.age,
			age_group   = EXCLUDED.age_group,
			gender      = EXCLUDED.gender,
			last_active = now()`

	_, err := s.db.ExecContext(ctx, query, u.ID, u.City, u.Age, u.AgeGroup, u.Gender)
	if err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given id, or nil if not found.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	const query = `SELECT * FROM users WHERE id = $1`

	var u User
	err := s.db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

// TouchLastActive bumps the user's last_active timestamp.
func (s *Store) TouchLastActive(ctx context.Context, id string) error {
	const query = `UPDATE users SET last_active = now() WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: touch last_active: %w", err)
	}
	return nil
}
