package storage

import (
	"fmt"
)

// rollupEventsBefore folds every send event older than cutoff into
// daily_rollups and deletes the folded events, in one transaction so an
// event is never counted twice or lost.
func (s *SQLiteStore) rollupEventsBefore(cutoff string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting rollup transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO daily_rollups (date, sent, failed, total_response_ms)
		SELECT
			date(timestamp) AS day,
			SUM(CASE WHEN kind = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'error' THEN 1 ELSE 0 END),
			SUM(response_ms)
		FROM send_events
		WHERE timestamp < ?
		GROUP BY day
		ON CONFLICT(date) DO UPDATE SET
			sent = daily_rollups.sent + excluded.sent,
			failed = daily_rollups.failed + excluded.failed,
			total_response_ms = daily_rollups.total_response_ms + excluded.total_response_ms
	`, cutoff)
	if err != nil {
		return fmt.Errorf("aggregating old events: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM send_events WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("pruning old events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollup: %w", err)
	}
	return nil
}
