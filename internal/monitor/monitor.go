// Package monitor tracks the outcome of every email send attempt: a bounded
// event log, derived statistics, daily quota usage, a health verdict and the
// daily reset that bounds all of it.
//
// A Monitor is constructed explicitly and injected into whatever sends mail.
// All methods are safe for concurrent use; none of them perform I/O. Alert
// notifiers and hooks run after the internal lock is released and must not
// block.
package monitor

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/clock"
	"github.com/nixlim/mailwatch/internal/events"
)

// Monitor aggregates email send outcomes.
type Monitor struct {
	mu    sync.Mutex
	cfg   Config
	log   *events.RingBuffer
	stats Stats

	clock      clock.Clock
	logger     zerolog.Logger
	notifier   alerts.Notifier
	eventHooks []func(Event)
	resetHooks []func(EpochSummary)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the wall-clock source.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithNotifier sets the sink for critical alerts.
func WithNotifier(n alerts.Notifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

// WithEventHook registers fn to receive every recorded event.
func WithEventHook(fn func(Event)) Option {
	return func(m *Monitor) { m.eventHooks = append(m.eventHooks, fn) }
}

// WithResetHook registers fn to receive the summary of every closed epoch.
func WithResetHook(fn func(EpochSummary)) Option {
	return func(m *Monitor) { m.resetHooks = append(m.resetHooks, fn) }
}

// New creates a Monitor. Non-positive sizes in cfg fall back to DefaultConfig;
// a negative quota limit is treated as unlimited.
func New(cfg Config, opts ...Option) *Monitor {
	def := DefaultConfig()
	if cfg.MaxEvents < 1 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.AverageWindow < 1 {
		cfg.AverageWindow = def.AverageWindow
	}
	if cfg.RetainOnReset < 0 {
		cfg.RetainOnReset = def.RetainOnReset
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = def.ResetInterval
	}
	if cfg.QuotaLimit < 0 {
		cfg.QuotaLimit = 0
	}

	m := &Monitor{
		cfg:    cfg,
		log:    events.NewRingBuffer(cfg.MaxEvents),
		clock:  clock.Real{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stats = m.freshStats()
	return m
}

// RecordSuccess records a delivered email that took responseTimeMs.
func (m *Monitor) RecordSuccess(responseTimeMs int) {
	m.mu.Lock()
	m.stats.TotalSent++
	if m.stats.QuotaLimit > 0 {
		m.stats.QuotaUsed++
	}
	ev := Event{
		Kind:           events.KindSuccess,
		Timestamp:      m.clock.Now(),
		ResponseTimeMs: responseTimeMs,
	}
	m.log.Add(ev)
	m.recomputeLocked()
	m.mu.Unlock()

	m.emit(ev)
}

// RecordFailure records a failed send. A QUOTA_EXCEEDED code raises a
// critical alert; nothing is ever returned to the caller.
func (m *Monitor) RecordFailure(sendErr SendError, responseTimeMs int) {
	m.mu.Lock()
	now := m.clock.Now()
	m.stats.TotalFailed++
	m.stats.ErrorsByType[sendErr.Code]++
	m.stats.LastError = &LastError{
		Message:   sendErr.Message,
		Code:      sendErr.Code,
		Timestamp: now,
	}
	errCopy := sendErr
	ev := Event{
		Kind:           events.KindError,
		Timestamp:      now,
		ResponseTimeMs: responseTimeMs,
		Error:          &errCopy,
	}
	m.log.Add(ev)
	m.recomputeLocked()
	m.mu.Unlock()

	m.emit(ev)

	if sendErr.Code == events.CodeQuotaExceeded {
		m.logger.Error().
			Str("code", sendErr.Code).
			Str("error", sendErr.Message).
			Msg("CRITICAL: email quota exceeded")
		if m.notifier != nil {
			m.notifier.Notify(alerts.Alert{
				Rule:     alerts.RuleQuotaExceeded,
				Severity: alerts.SeverityCritical,
				Code:     sendErr.Code,
				Message:  "Email quota exceeded: " + sendErr.Message,
				FiredAt:  now,
			})
		}
	}
}

// Stats returns a snapshot of the current statistics, resetting them first
// if the epoch has expired.
func (m *Monitor) Stats() Stats {
	m.ResetIfDue()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.clone()
}

// RecentEvents returns the newest limit events, oldest first.
func (m *Monitor) RecentEvents(limit int) []Event {
	return m.log.Tail(limit)
}

// ErrorSummary reports the epoch's failures: totals, per-code counts, the
// last 50 failures and the last 10 QUOTA_EXCEEDED failures of the past hour.
func (m *Monitor) ErrorSummary() ErrorSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[string]int, len(m.stats.ErrorsByType))
	for k, v := range m.stats.ErrorsByType {
		byType[k] = v
	}

	return ErrorSummary{
		TotalErrors:    m.stats.TotalFailed,
		ErrorsByType:   byType,
		RecentErrors:   nonNil(m.log.TailErrors("", recentErrorLimit)),
		CriticalErrors: nonNil(m.criticalErrorsLocked(criticalErrorLimit)),
	}
}

// criticalErrorsLocked returns up to limit QUOTA_EXCEEDED events from the
// last hour, oldest first.
func (m *Monitor) criticalErrorsLocked(limit int) []Event {
	cutoff := m.clock.Now().Add(-criticalWindow)
	var recent []Event
	for _, e := range m.log.TailErrors(events.CodeQuotaExceeded, m.log.Cap()) {
		if !e.Timestamp.Before(cutoff) {
			recent = append(recent, e)
		}
	}
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	return recent
}

// recomputeLocked re-derives SuccessRate and AverageResponseTimeMs from the
// current counters and event log.
func (m *Monitor) recomputeLocked() {
	attempts := m.stats.TotalSent + m.stats.TotalFailed
	if attempts == 0 {
		m.stats.SuccessRate = 100
	} else {
		m.stats.SuccessRate = float64(m.stats.TotalSent) / float64(attempts) * 100
	}

	sum, n := m.log.TailLatency(m.cfg.AverageWindow)
	if n == 0 {
		m.stats.AverageResponseTimeMs = 0
	} else {
		m.stats.AverageResponseTimeMs = int(math.Floor(float64(sum)/float64(n) + 0.5))
	}
}

func (m *Monitor) freshStats() Stats {
	return Stats{
		QuotaLimit:    m.cfg.QuotaLimit,
		ErrorsByType:  make(map[string]int),
		SuccessRate:   100,
		LastResetTime: m.clock.Now(),
	}
}

func (m *Monitor) emit(ev Event) {
	for _, fn := range m.eventHooks {
		fn(ev)
	}
}

func nonNil(evts []Event) []Event {
	if evts == nil {
		return []Event{}
	}
	return evts
}
