package storage

import (
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/nixlim/mailwatch/internal/monitor"
)

// tsLayout is fixed-width so stored timestamps sort lexically and parse with
// SQLite's date functions.
const tsLayout = "2006-01-02T15:04:05.000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sendEventRow holds the data for a single send_events row.
type sendEventRow struct {
	Kind         string
	Timestamp    string
	ResponseMs   int
	ErrorCode    string
	ErrorMessage string
}

// summaryRow holds the data for a single epoch_summaries row.
type summaryRow struct {
	Reason        string
	StartedAt     string
	EndedAt       string
	TotalSent     int
	TotalFailed   int
	QuotaUsed     int
	QuotaLimit    int
	SuccessRate   float64
	AvgResponseMs int
	ErrorsByType  map[string]int
}

// alertHistoryRow holds the data for a single alert_history row.
type alertHistoryRow struct {
	AlertID  string
	Rule     string
	Severity string
	Code     string
	Message  string
	FiredAt  string
}

func buildSummaryRow(s monitor.EpochSummary) *summaryRow {
	return &summaryRow{
		Reason:        string(s.Reason),
		StartedAt:     formatTS(s.Start),
		EndedAt:       formatTS(s.End),
		TotalSent:     s.TotalSent,
		TotalFailed:   s.TotalFailed,
		QuotaUsed:     s.QuotaUsed,
		QuotaLimit:    s.QuotaLimit,
		SuccessRate:   s.SuccessRate,
		AvgResponseMs: s.AverageResponseTimeMs,
		ErrorsByType:  s.ErrorsByType,
	}
}

// sanitizeFloat replaces NaN and Inf with 0.0.
func sanitizeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.0
	}
	return v
}

// nullIfEmpty stores empty strings as NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) writeSendEvent(tx *sql.Tx, row *sendEventRow) error {
	_, err := tx.Exec(`
		INSERT INTO send_events (kind, timestamp, response_ms, error_code, error_message)
		VALUES (?, ?, ?, ?, ?)
	`, row.Kind, row.Timestamp, row.ResponseMs, nullIfEmpty(row.ErrorCode), nullIfEmpty(row.ErrorMessage))
	return err
}

func (s *SQLiteStore) writeSummary(tx *sql.Tx, row *summaryRow) error {
	var errorsJSON any
	if len(row.ErrorsByType) > 0 {
		data, err := json.Marshal(row.ErrorsByType)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal errors_by_type JSON")
		} else {
			errorsJSON = string(data)
		}
	}

	_, err := tx.Exec(`
		INSERT INTO epoch_summaries (
			reason, started_at, ended_at, total_sent, total_failed,
			quota_used, quota_limit, success_rate, avg_response_ms, errors_by_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.Reason,
		row.StartedAt,
		row.EndedAt,
		row.TotalSent,
		row.TotalFailed,
		row.QuotaUsed,
		row.QuotaLimit,
		sanitizeFloat(row.SuccessRate),
		row.AvgResponseMs,
		errorsJSON,
	)
	return err
}

func (s *SQLiteStore) writeAlertHistory(tx *sql.Tx, row *alertHistoryRow) error {
	_, err := tx.Exec(`
		INSERT INTO alert_history (alert_id, rule, severity, code, message, fired_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.AlertID, row.Rule, row.Severity, nullIfEmpty(row.Code), row.Message, row.FiredAt)
	return err
}
