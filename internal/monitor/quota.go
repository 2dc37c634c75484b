package monitor

import "math"

// IsQuotaNearLimit reports whether quota usage has reached threshold, a
// fraction of the daily limit. A threshold <= 0 means DefaultQuotaThreshold.
// It is always false when the quota is unlimited.
func (m *Monitor) IsQuotaNearLimit(threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultQuotaThreshold
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return quotaNearLimit(m.stats.QuotaUsed, m.stats.QuotaLimit, threshold)
}

// QuotaUsagePercentage returns quota usage as a rounded percentage of the
// daily limit, or 0 when the quota is unlimited.
func (m *Monitor) QuotaUsagePercentage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return quotaPercent(m.stats.QuotaUsed, m.stats.QuotaLimit)
}

func quotaNearLimit(used, limit int, threshold float64) bool {
	if limit <= 0 {
		return false
	}
	return float64(used)/float64(limit) >= threshold
}

func quotaPercent(used, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(limit) * 100))
}
