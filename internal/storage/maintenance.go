package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	maintenanceInterval = 1 * time.Hour
	vacuumInterval      = 7 * 24 * time.Hour
)

func (s *SQLiteStore) startMaintenance(ctx context.Context, retentionDays, summaryRetentionDays int) {
	go s.maintenanceLoop(ctx, retentionDays, summaryRetentionDays)
}

func (s *SQLiteStore) maintenanceLoop(ctx context.Context, retentionDays, summaryRetentionDays int) {
	defer close(s.maintenanceDone)

	lastVacuum := s.clock.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runMaintenanceCycle(retentionDays, summaryRetentionDays); err != nil {
				s.logger.Error().Err(err).Msg("maintenance cycle failed")
			}

			if s.clock.Now().Sub(lastVacuum) >= vacuumInterval {
				if _, err := s.db.Exec("VACUUM"); err != nil {
					s.logger.Error().Err(err).Msg("VACUUM failed")
				} else {
					lastVacuum = s.clock.Now()
				}
			}
		}
	}
}

// runMaintenanceCycle rolls send events older than retentionDays into daily
// totals, then drops summaries, rollups and alerts older than
// summaryRetentionDays.
func (s *SQLiteStore) runMaintenanceCycle(retentionDays, summaryRetentionDays int) error {
	now := s.clock.Now()
	eventCutoff := formatTS(now.AddDate(0, 0, -retentionDays))
	summaryCutoff := now.AddDate(0, 0, -summaryRetentionDays)

	if err := s.rollupEventsBefore(eventCutoff); err != nil {
		return err
	}

	_, err := s.db.Exec("DELETE FROM epoch_summaries WHERE ended_at < ?", formatTS(summaryCutoff))
	if err != nil {
		return fmt.Errorf("pruning old summaries: %w", err)
	}

	_, err = s.db.Exec("DELETE FROM daily_rollups WHERE date < ?", summaryCutoff.UTC().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("pruning old rollups: %w", err)
	}

	_, err = s.db.Exec("DELETE FROM alert_history WHERE fired_at < ?", formatTS(summaryCutoff))
	if err != nil {
		return fmt.Errorf("pruning old alerts: %w", err)
	}

	return nil
}
