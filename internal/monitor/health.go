package monitor

import (
	"fmt"

	"github.com/nixlim/mailwatch/internal/events"
)

const (
	successRateWarning  = 95.0
	successRateCritical = 80.0

	quotaWarning  = 0.9
	quotaCritical = 0.95

	slowResponseMs = 5000
)

// HealthStatus evaluates the current statistics into a health verdict.
func (m *Monitor) HealthStatus() Health {
	stats := m.Stats()

	m.mu.Lock()
	quotaExceededRecently := len(m.criticalErrorsLocked(1)) > 0
	m.mu.Unlock()

	return EvaluateHealth(stats, quotaExceededRecently)
}

// EvaluateHealth classifies a statistics snapshot. quotaExceededRecently
// reports whether a QUOTA_EXCEEDED failure was recorded in the last hour.
// The status is the most severe triggered condition; issues and
// recommendations accumulate from every triggered condition.
func EvaluateHealth(s Stats, quotaExceededRecently bool) Health {
	h := Health{
		Status:          StatusHealthy,
		Issues:          []string{},
		Recommendations: []string{},
	}
	escalate := func(to Status) {
		if to.rank() > h.Status.rank() {
			h.Status = to
		}
	}

	if s.SuccessRate < successRateWarning {
		escalate(StatusWarning)
		h.Issues = append(h.Issues, fmt.Sprintf("Low success rate: %.1f%%", s.SuccessRate))
		h.Recommendations = append(h.Recommendations, "Check email service configuration and API key")
	}
	if s.SuccessRate < successRateCritical {
		escalate(StatusCritical)
	}

	if quotaNearLimit(s.QuotaUsed, s.QuotaLimit, quotaWarning) {
		escalate(StatusWarning)
		h.Issues = append(h.Issues, fmt.Sprintf("Approaching daily quota limit: %d%% used", quotaPercent(s.QuotaUsed, s.QuotaLimit)))
		h.Recommendations = append(h.Recommendations, "Consider upgrading the email service plan or reducing email volume")
	}
	if quotaNearLimit(s.QuotaUsed, s.QuotaLimit, quotaCritical) {
		escalate(StatusCritical)
	}

	if quotaExceededRecently {
		escalate(StatusCritical)
		h.Issues = append(h.Issues, fmt.Sprintf("Email quota exceeded (%s) within the last hour", events.CodeQuotaExceeded))
		h.Recommendations = append(h.Recommendations, "Immediate action required: upgrade the email plan or wait for the daily quota reset")
	}

	if s.AverageResponseTimeMs > slowResponseMs {
		escalate(StatusWarning)
		h.Issues = append(h.Issues, fmt.Sprintf("High average response time: %dms", s.AverageResponseTimeMs))
		h.Recommendations = append(h.Recommendations, "Check network connectivity and email service status")
	}

	return h
}
