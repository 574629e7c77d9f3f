package store

import (
	"context"
	"fmt"
	"time"
)

// Report is an abuse report filed by one user against another. Append-only;
// never consumed by matching logic.
type Report struct {
	ID         string    `db:"id"`
	ReporterID string    `db:"reporter_id"`
	ReportedID string    `db:"reported_id"`
	ChatID     *string   `db:"chat_id"`
	Reason     string    `db:"reason"`
	CreatedAt  time.Time `db:"created_at"`
}

// InsertReport persists a report for moderation review.
func (s *Store) InsertReport(ctx context.Context, r *Report) error {
	const query = `
		INSERT INTO reports (id, reporter_id, reported_id, chat_id, reason)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, r.ID, r.ReporterID, r.ReportedID, r.ChatID, r.Reason)
	if err != nil {
		return fmt.Errorf("store: insert report: %w", err)
	}
	return nil
}

// CountRecentReports returns the number of reports filed against a user
// within the given window. Useful for moderation tooling.
func (s *Store) CountRecentReports(ctx context.Context, reportedID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM reports
		WHERE reported_id = $1
		  AND created_at >= now() - $2::interval`

	var count int
	err := s.db.GetContext(ctx, &count, query, reportedID, window.String())
	if err != nil {
		return 0, fmt.Errorf("store: count recent reports: %w", err)
	}
	return count, nil
}
