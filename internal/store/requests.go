package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// MatchRequest is one persisted statement of a user's willingness to be
// matched. City and AgeGroup are denormalized snapshots captured at request
// time and never re-read from the user row.
type MatchRequest struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	City            string    `db:"city"`
	AgeGroup        string    `db:"age_group"`
	MinAge          int       `db:"min_age"`
	MaxAge          int       `db:"max_age"`
	PreferredGender string    `db:"preferred_gender"`
	CreatedAt       time.Time `db:"created_at"`
}

// Candidate is a pending match request joined with its owner's current age
// and gender, as needed by the mutual-acceptance check.
type Candidate struct {
	RequestID       string `db:"request_id"`
	UserID          string `db:"user_id"`
	MinAge          int    `db:"min_age"`
	MaxAge          int    `db:"max_age"`
	PreferredGender string `db:"preferred_gender"`
	Age             int    `db:"age"`
	Gender          string `db:"gender"`
}

// ReplaceMatchRequest deletes any previous pending requests by the same user
// and inserts the new one, in a single transaction. A user therefore has at
// most one pending request at any time.
func (s *Store) ReplaceMatchRequest(ctx context.Context, r *MatchRequest) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace request begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM match_requests WHERE user_id = $1`, r.UserID); err != nil {
		return fmt.Errorf("store: replace request delete: %w", err)
	}

	const insert = `
		INSERT INTO match_requests (id, user_id, city, age_group, min_age, max_age, preferred_gender)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insert,
		r.ID, r.UserID, r.City, r.AgeGroup, r.MinAge, r.MaxAge, r.PreferredGender); err != nil {
		return fmt.Errorf("store: replace request insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace request commit: %w", err)
	}
	return nil
}

// LatestMatchRequest returns the user's most recent pending request, or nil
// if none is pending.
func (s *Store) LatestMatchRequest(ctx context.Context, userID string) (*MatchRequest, error) {
	const query = `
		SELECT * FROM match_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var r MatchRequest
	err := s.db.GetContext(ctx, &r, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest request: %w", err)
	}
	return &r, nil
}

// ListCandidates returns pending requests in the same city and age group,
// excluding the requester, joined with each owner's age and gender, oldest
// first so the earliest waiting candidate is tried first.
func (s *Store) ListCandidates(ctx context.Context, city, ageGroup, excludeUserID string, limit int) ([]Candidate, error) {
	const query = `
		SELECT mr.id AS request_id, mr.user_id, mr.min_age, mr.max_age, mr.preferred_gender,
		       u.age, u.gender
		FROM match_requests mr
		JOIN users u ON u.id = mr.user_id
		WHERE mr.city = $1 AND mr.age_group = $2 AND mr.user_id <> $3
		ORDER BY mr.created_at ASC
		LIMIT $4`

	var candidates []Candidate
	if err := s.db.SelectContext(ctx, &candidates, query, city, ageGroup, excludeUserID, limit); err != nil {
		return nil, fmt.Errorf("store: list candidates: %w", err)
	}
	return candidates, nil
}

// ClaimMatch atomically consumes a mutual match: it re-verifies under a row
// lock that the candidate's request still exists, creates the chat, and
// deletes both parties' pending requests. If the candidate's request has
// already been claimed by a concurrent attempt, it returns ErrRequestGone
// and leaves the database untouched.
//
// Two users claiming each other at the same instant lock each other's
// request rows and Postgres aborts one transaction with a deadlock error.
// That loser's rollback is also reported as ErrRequestGone: the surviving
// commit matches the pair anyway, so the caller just moves on.
func (s *Store) ClaimMatch(ctx context.Context, chatID, requesterID, partnerID, partnerRequestID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: claim begin: %w", err)
	}
	defer tx.Rollback()

	// Row lock on the candidate's request is the sole guard against two
	// concurrent attempts claiming the same candidate.
	var one int
	err = tx.GetContext(ctx, &one,
		`SELECT 1 FROM match_requests WHERE id = $1 FOR UPDATE`, partnerRequestID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRequestGone
	}
	if err != nil {
		if isClaimConflict(err) {
			return ErrRequestGone
		}
		return fmt.Errorf("store: claim lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chats (id, user1_id, user2_id) VALUES ($1, $2, $3)`,
		chatID, requesterID, partnerID); err != nil {
		if isClaimConflict(err) {
			return ErrRequestGone
		}
		return fmt.Errorf("store: claim insert chat: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM match_requests WHERE user_id IN ($1, $2)`,
		requesterID, partnerID); err != nil {
		if isClaimConflict(err) {
			return ErrRequestGone
		}
		return fmt.Errorf("store: claim delete requests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isClaimConflict(err) {
			return ErrRequestGone
		}
		return fmt.Errorf("store: claim commit: %w", err)
	}
	return nil
}

// isClaimConflict reports whether err is a Postgres deadlock (40P01) or
// serialization failure (40001). Either means the claim lost a race with a
// concurrent claim, never that the store itself is broken.
func isClaimConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40P01" || pqErr.Code == "40001"
}
