package store

import (
	"context"
	"fmt"
	"time"
)

// Message is one sanitized chat message. Immutable once created; retained
// for audit and report review.
type Message struct {
	ID        string    `db:"id"`
	ChatID    string    `db:"chat_id"`
	SenderID  string    `db:"sender_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

// InsertMessage persists a message.
func (s *Store) InsertMessage(ctx context.Context, m *Message) error {
	const query = `
		INSERT INTO messages (id, chat_id, sender_id, text)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, m.ID, m.ChatID, m.SenderID, m.Text)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}
