// Package matching implements the matchmaking engine: a mutual-compatibility
// search over persisted match requests with an atomic, transaction-guarded
// claim of the chosen candidate.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/anoncity/chat-app/internal/store"
)

// candidateLimit caps how many pending requests one attempt scans.
const candidateLimit = 60

// ErrNotRegistered is returned when the requesting user has no user record.
var ErrNotRegistered = errors.New("matching: user not registered")

// Store is the slice of persistence the matchmaker needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	LatestMatchRequest(ctx context.Context, userID string) (*store.MatchRequest, error)
	ListCandidates(ctx context.Context, city, ageGroup, excludeUserID string, limit int) ([]store.Candidate, error)
	BlockExists(ctx context.Context, a, b string) (bool, error)
	ClaimMatch(ctx context.Context, chatID, requesterID, partnerID, partnerRequestID string) error
}

// Match is the outcome of a successful claim.
type Match struct {
	ChatID    string
	PartnerID string
}

// Matchmaker pairs users by scanning pending requests for a mutual fit.
type Matchmaker struct {
	store Store
}

// New creates a Matchmaker backed by the given store.
func New(s Store) *Matchmaker {
	return &Matchmaker{store: s}
}

// TryMatchFor attempts to match the user who just persisted a request.
// It returns nil when no compatible candidate could be claimed — the caller
// reports "waiting". Candidates are tried oldest-first; a candidate whose
// request vanished mid-claim (taken by a concurrent attempt) is skipped and
// never retried, while any other transaction failure aborts the attempt.
func (m *Matchmaker) TryMatchFor(ctx context.Context, userID string) (*Match, error) {
	me, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return nil, ErrNotRegistered
	}

	myReq, err := m.store.LatestMatchRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if myReq == nil {
		return nil, nil
	}

	candidates, err := m.store.ListCandidates(ctx, me.City, me.AgeGroup, userID, candidateLimit)
	if err != nil {
		return nil, err
	}

	for _, cand := range candidates {
		blocked, err := m.store.BlockExists(ctx, userID, cand.UserID)
		if err != nil {
			return nil, err
		}
		if blocked {
			continue
		}

		// Both directions must hold: my criteria accept the candidate and
		// the candidate's stored criteria accept me.
		if !accepts(myReq.MinAge, myReq.MaxAge, myReq.PreferredGender, cand.Age, cand.Gender) {
			continue
		}
		if !accepts(cand.MinAge, cand.MaxAge, cand.PreferredGender, me.Age, me.Gender) {
			continue
		}

		chatID := uuid.New().String()
		err = m.store.ClaimMatch(ctx, chatID, userID, cand.UserID, cand.RequestID)
		if errors.Is(err, store.ErrRequestGone) {
			// Claimed by a concurrent attempt; move on, never retry this one.
			log.Printf("[matcher] candidate %s already claimed, trying next", cand.UserID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("matching: claim: %w", err)
		}

		return &Match{ChatID: chatID, PartnerID: cand.UserID}, nil
	}

	return nil, nil
}

// accepts reports whether one party's stored criteria (age range and gender
// preference) accept the other party.
func accepts(minAge, maxAge int, preferredGender string, otherAge int, otherGender string) bool {
	if otherAge < minAge || otherAge > maxAge {
		return false
	}
	return preferredGender == "any" || preferredGender == otherGender
}
