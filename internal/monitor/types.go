package monitor

import (
	"time"

	"github.com/nixlim/mailwatch/internal/events"
)

// Re-exported so callers of the monitor need not import the events package
// for the common case.
type (
	Event     = events.Event
	SendError = events.SendError
)

const (
	// DefaultQuotaThreshold is the fraction of the daily quota at which
	// IsQuotaNearLimit reports true when no explicit threshold is given.
	DefaultQuotaThreshold = 0.8

	// DefaultQuotaLimit is the daily email quota used when none is configured.
	DefaultQuotaLimit = 100

	recentErrorLimit   = 50
	criticalErrorLimit = 10
	criticalWindow     = time.Hour
)

// Config holds the monitor's construction-time settings. It is read once by
// New and never reloaded.
type Config struct {
	// QuotaLimit is the daily email quota. Zero disables quota tracking.
	QuotaLimit int
	// MaxEvents bounds the event log.
	MaxEvents int
	// AverageWindow is how many of the newest events feed the average latency.
	AverageWindow int
	// RetainOnReset is how many events a scheduled reset keeps.
	RetainOnReset int
	// ResetInterval is the statistics epoch length.
	ResetInterval time.Duration
}

// DefaultConfig returns the standard monitor settings.
func DefaultConfig() Config {
	return Config{
		QuotaLimit:    DefaultQuotaLimit,
		MaxEvents:     1000,
		AverageWindow: 100,
		RetainOnReset: 100,
		ResetInterval: 24 * time.Hour,
	}
}

// LastError describes the most recent failure.
type LastError struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is a point-in-time snapshot of the monitor's statistics.
type Stats struct {
	TotalSent             int            `json:"totalSent"`
	TotalFailed           int            `json:"totalFailed"`
	QuotaUsed             int            `json:"quotaUsed"`
	QuotaLimit            int            `json:"quotaLimit"`
	ErrorsByType          map[string]int `json:"errorsByType"`
	LastError             *LastError     `json:"lastError,omitempty"`
	SuccessRate           float64        `json:"successRate"`
	AverageResponseTimeMs int            `json:"averageResponseTime"`
	LastResetTime         time.Time      `json:"lastResetTime"`
}

// clone returns a deep copy safe to hand to callers.
func (s Stats) clone() Stats {
	out := s
	out.ErrorsByType = make(map[string]int, len(s.ErrorsByType))
	for k, v := range s.ErrorsByType {
		out.ErrorsByType[k] = v
	}
	if s.LastError != nil {
		le := *s.LastError
		out.LastError = &le
	}
	return out
}

// ErrorSummary breaks down the failures of the current epoch.
type ErrorSummary struct {
	TotalErrors    int            `json:"totalErrors"`
	ErrorsByType   map[string]int `json:"errorsByType"`
	RecentErrors   []Event        `json:"recentErrors"`
	CriticalErrors []Event        `json:"criticalErrors"`
}

// Status is the health verdict level.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Health is the outcome of a health evaluation.
type Health struct {
	Status          Status   `json:"status"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ResetReason records what triggered a statistics reset.
type ResetReason string

const (
	ResetScheduled ResetReason = "scheduled"
	ResetForced    ResetReason = "forced"
)

// EpochSummary is the final state of a statistics epoch, produced by every
// reset and delivered to reset hooks.
type EpochSummary struct {
	Reason                ResetReason    `json:"reason"`
	Start                 time.Time      `json:"start"`
	End                   time.Time      `json:"end"`
	TotalSent             int            `json:"totalSent"`
	TotalFailed           int            `json:"totalFailed"`
	QuotaUsed             int            `json:"quotaUsed"`
	QuotaLimit            int            `json:"quotaLimit"`
	SuccessRate           float64        `json:"successRate"`
	AverageResponseTimeMs int            `json:"averageResponseTime"`
	ErrorsByType          map[string]int `json:"errorsByType"`
}
