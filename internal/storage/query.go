package storage

import (
	"database/sql"
	"encoding/json"
	"math"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/monitor"
)

const maxAlertRows = 200

func (s *SQLiteStore) QuerySummaries(days int) []monitor.EpochSummary {
	cutoff := formatTS(s.clock.Now().AddDate(0, 0, -clampDays(days)))

	rows, err := s.db.Query(`
		SELECT reason, started_at, ended_at, total_sent, total_failed,
			quota_used, quota_limit, success_rate, avg_response_ms, errors_by_type
		FROM epoch_summaries
		WHERE ended_at >= ?
		ORDER BY ended_at DESC, id DESC
	`, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("querying epoch summaries")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var summaries []monitor.EpochSummary
	for rows.Next() {
		var (
			sum                monitor.EpochSummary
			reason, start, end string
			errorsJSON         sql.NullString
		)
		if err := rows.Scan(&reason, &start, &end, &sum.TotalSent, &sum.TotalFailed,
			&sum.QuotaUsed, &sum.QuotaLimit, &sum.SuccessRate, &sum.AverageResponseTimeMs,
			&errorsJSON); err != nil {
			s.logger.Error().Err(err).Msg("scanning epoch summary row")
			continue
		}
		sum.Reason = monitor.ResetReason(reason)
		sum.Start = parseTS(start)
		sum.End = parseTS(end)
		sum.ErrorsByType = map[string]int{}
		if errorsJSON.Valid {
			if err := json.Unmarshal([]byte(errorsJSON.String), &sum.ErrorsByType); err != nil {
				s.logger.Warn().Err(err).Msg("decoding errors_by_type")
			}
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("iterating epoch summary rows")
	}
	return summaries
}

// QueryDailyActivity merges rolled-up days with days still held as raw send
// events. A day can be partly in both while its events are being pruned.
func (s *SQLiteStore) QueryDailyActivity(days int) []DailyActivity {
	cutoff := s.clock.Now().UTC().AddDate(0, 0, -clampDays(days)).Format("2006-01-02")

	rows, err := s.db.Query(`
		SELECT day, SUM(sent), SUM(failed), SUM(total_ms)
		FROM (
			SELECT date AS day, sent, failed, total_response_ms AS total_ms
			FROM daily_rollups
			WHERE date >= ?

			UNION ALL

			SELECT
				date(timestamp) AS day,
				SUM(CASE WHEN kind = 'success' THEN 1 ELSE 0 END) AS sent,
				SUM(CASE WHEN kind = 'error' THEN 1 ELSE 0 END) AS failed,
				SUM(response_ms) AS total_ms
			FROM send_events
			WHERE date(timestamp) >= ?
			GROUP BY date(timestamp)
		)
		GROUP BY day
		ORDER BY day DESC
	`, cutoff, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("querying daily activity")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []DailyActivity
	for rows.Next() {
		var (
			da      DailyActivity
			totalMs int64
		)
		if err := rows.Scan(&da.Date, &da.Sent, &da.Failed, &totalMs); err != nil {
			s.logger.Error().Err(err).Msg("scanning daily activity row")
			continue
		}
		da.AverageResponseMs = averageMs(totalMs, da.Sent+da.Failed)
		out = append(out, da)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("iterating daily activity rows")
	}
	return out
}

func (s *SQLiteStore) RecentAlerts(limit int) []alerts.Alert {
	if limit <= 0 || limit > maxAlertRows {
		limit = maxAlertRows
	}

	rows, err := s.db.Query(`
		SELECT alert_id, rule, severity, code, message, fired_at
		FROM alert_history
		ORDER BY fired_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("querying alert history")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []alerts.Alert
	for rows.Next() {
		var (
			a                      alerts.Alert
			id, code, msg, firedAt sql.NullString
		)
		if err := rows.Scan(&id, &a.Rule, &a.Severity, &code, &msg, &firedAt); err != nil {
			s.logger.Error().Err(err).Msg("scanning alert row")
			continue
		}
		a.ID = id.String
		a.Code = code.String
		a.Message = msg.String
		a.FiredAt = parseTS(firedAt.String)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("iterating alert rows")
	}
	return out
}

func clampDays(days int) int {
	if days < 1 {
		return 1
	}
	return days
}

func averageMs(total int64, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}
