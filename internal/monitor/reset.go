package monitor

import "time"

// ResetDailyStats closes the current epoch: counters, the error map and the
// last error are zeroed and the event log is truncated to its newest entries
// so the rolling average stays continuous. The quota limit is unchanged.
func (m *Monitor) ResetDailyStats() {
	m.reset(ResetScheduled)
}

// ForceReset is the administrative reset. It has the same effect as
// ResetDailyStats except that the event log is cleared entirely.
func (m *Monitor) ForceReset() {
	m.reset(ResetForced)
}

// ResetIfDue performs a scheduled reset when at least one reset interval has
// passed since the last reset, and reports whether it did. Both the periodic
// scheduler and Stats call it; a reset that just happened makes it a no-op.
func (m *Monitor) ResetIfDue() bool {
	m.mu.Lock()
	if m.clock.Now().Sub(m.stats.LastResetTime) < m.cfg.ResetInterval {
		m.mu.Unlock()
		return false
	}
	summary := m.resetLocked(ResetScheduled)
	m.mu.Unlock()

	m.afterReset(summary)
	return true
}

// ResetForBoundary performs the scheduled reset for the epoch boundary at
// boundary unless a reset already happened at or after it, and reports
// whether it reset. The Scheduler calls it so a lazy reset from Stats just
// before the timer fires is not followed by a second one.
func (m *Monitor) ResetForBoundary(boundary time.Time) bool {
	m.mu.Lock()
	if !m.stats.LastResetTime.Before(boundary) {
		m.mu.Unlock()
		return false
	}
	summary := m.resetLocked(ResetScheduled)
	m.mu.Unlock()

	m.afterReset(summary)
	return true
}

func (m *Monitor) reset(reason ResetReason) {
	m.mu.Lock()
	summary := m.resetLocked(reason)
	m.mu.Unlock()

	m.afterReset(summary)
}

// resetLocked summarises the closing epoch and starts a new one.
func (m *Monitor) resetLocked(reason ResetReason) EpochSummary {
	now := m.clock.Now()
	closing := m.stats.clone()

	summary := EpochSummary{
		Reason:                reason,
		Start:                 closing.LastResetTime,
		End:                   now,
		TotalSent:             closing.TotalSent,
		TotalFailed:           closing.TotalFailed,
		QuotaUsed:             closing.QuotaUsed,
		QuotaLimit:            closing.QuotaLimit,
		SuccessRate:           closing.SuccessRate,
		AverageResponseTimeMs: closing.AverageResponseTimeMs,
		ErrorsByType:          closing.ErrorsByType,
	}

	if reason == ResetForced {
		m.log.Clear()
	} else {
		m.log.Truncate(m.cfg.RetainOnReset)
	}

	m.stats = m.freshStats()
	m.recomputeLocked()
	return summary
}

func (m *Monitor) afterReset(s EpochSummary) {
	m.logger.Info().
		Str("reason", string(s.Reason)).
		Int("sent", s.TotalSent).
		Int("failed", s.TotalFailed).
		Int("quota_used", s.QuotaUsed).
		Msg("email statistics reset")
	for _, fn := range m.resetHooks {
		fn(s)
	}
}
