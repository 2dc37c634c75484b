package alerts

import "time"

// Alert rule name constants.
const (
	RuleQuotaExceeded  = "QuotaExceeded"
	RuleQuotaNearLimit = "QuotaNearLimit"
	RuleHealthDegraded = "HealthDegraded"
)

// Alert severity constants.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert represents a condition that operators should hear about.
type Alert struct {
	ID       string    `json:"id"`
	Rule     string    `json:"rule"`     // QuotaExceeded, QuotaNearLimit, HealthDegraded
	Severity string    `json:"severity"` // warning, critical
	Message  string    `json:"message"`
	Code     string    `json:"code,omitempty"` // transport error code, if any
	FiredAt  time.Time `json:"firedAt"`
}

// alertKey returns the deduplication key for this alert. Two alerts with the
// same key within the dedup window are considered duplicates.
func (a Alert) alertKey() string {
	return a.Rule + ":" + a.Severity
}

// AlertPersister persists fired alerts to durable storage.
type AlertPersister interface {
	PersistAlert(alert Alert)
}

// Notifier delivers alerts. The monitor uses it as its alert sink.
type Notifier interface {
	// Notify sends an alert notification. Implementations must be non-blocking.
	Notify(alert Alert)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Alert)

// Notify calls f(alert).
func (f NotifierFunc) Notify(alert Alert) { f(alert) }

// Health statuses reported by a HealthSource, ordered by severity.
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// HealthSnapshot is the part of the monitor's verdict the engine evaluates.
type HealthSnapshot struct {
	Status       string
	Issues       []string
	QuotaPercent int
	QuotaLimited bool
}

// HealthSource produces the current health verdict.
type HealthSource interface {
	Snapshot() HealthSnapshot
}

// statusRank orders health statuses; unknown statuses rank as healthy.
func statusRank(status string) int {
	switch status {
	case StatusCritical:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}
