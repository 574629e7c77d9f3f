package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Chat is a conversation between two users. The pair is unordered; user1 and
// user2 reflect creation-time order only. A chat with a non-null EndedAt is
// permanently terminal.
type Chat struct {
	ID        string     `db:"id"`
	User1ID   string     `db:"user1_id"`
	User2ID   string     `db:"user2_id"`
	CreatedAt time.Time  `db:"created_at"`
	EndedAt   *time.Time `db:"ended_at"`
}

// IsParticipant reports whether userID is one of the chat's two parties.
func (c *Chat) IsParticipant(userID string) bool {
	return userID == c.User1ID || userID == c.User2ID
}

// Partner returns the other participant's id, or "" when userID is not a
// participant.
func (c *Chat) Partner(userID string) string {
	switch userID {
	case c.User1ID:
		return c.User2ID
	case c.User2ID:
		return c.User1ID
	default:
		return ""
	}
}

// GetActiveChat returns the chat with the given id if it has not ended, or
// nil otherwise.
func (s *Store) GetActiveChat(ctx context.Context, chatID string) (*Chat, error) {
	const query = `SELECT * FROM chats WHERE id = $1 AND ended_at IS NULL`

	var c Chat
	err := s.db.GetContext(ctx, &c, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get active chat: %w", err)
	}
	return &c, nil
}

// EndChat sets ended_at on the chat if it is still active and userID is a
// participant, returning the ended chat. It returns nil (and no error) when
// nothing changed — unknown id, already ended, or foreign chat — so ending
// twice is idempotent.
func (s *Store) EndChat(ctx context.Context, chatID, userID string) (*Chat, error) {
	const query = `
		UPDATE chats SET ended_at = now()
		WHERE id = $1 AND ended_at IS NULL AND (user1_id = $2 OR user2_id = $2)
		RETURNING id, user1_id, user2_id, created_at, ended_at`

	var c Chat
	err := s.db.GetContext(ctx, &c, query, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: end chat: %w", err)
	}
	return &c, nil
}
