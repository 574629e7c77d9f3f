package store

import (
	"context"
	"fmt"
)

// BlockExists reports whether a block exists between a and b in either
// direction.
func (s *Store) BlockExists(ctx context.Context, a, b string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, a, b); err != nil {
		return false, fmt.Errorf("store: block exists: %w", err)
	}
	return exists, nil
}

// InsertBlock records a block. Inserting an existing pair is a no-op.
func (s *Store) InsertBlock(ctx context.Context, blockerID, blockedID string) error {
	const query = `
		INSERT INTO blocks (blocker_id, blocked_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("store: insert block: %w", err)
	}
	return nil
}
