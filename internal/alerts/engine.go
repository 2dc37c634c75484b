// Package alerts turns monitor conditions into operator alerts. The Engine
// deduplicates, keeps a bounded history, persists and fans alerts out to
// notifiers; it also watches the monitor's health verdict for degradation.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/clock"
)

const (
	maxRecentAlerts = 100

	defaultDedupWindow      = 15 * time.Minute
	defaultEvaluateInterval = 30 * time.Second

	quotaAlertPercent = 90
)

// Engine is a Notifier that deduplicates alerts and distributes them.
// All methods are safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	recent    []Alert // oldest first
	lastFired map[string]time.Time

	lastStatus       string
	quotaAlertActive bool

	notifiers []Notifier
	persister AlertPersister
	source    HealthSource
	clock     clock.Clock
	logger    zerolog.Logger

	dedupWindow time.Duration
	interval    time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNotifier adds a notifier that receives every non-duplicate alert.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifiers = append(e.notifiers, n) }
}

// WithPersister sets the durable alert store.
func WithPersister(p AlertPersister) EngineOption {
	return func(e *Engine) { e.persister = p }
}

// WithHealthSource sets the source evaluated by Start.
func WithHealthSource(s HealthSource) EngineOption {
	return func(e *Engine) { e.source = s }
}

// WithClock overrides the engine's time source.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine's logger.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithDedupWindow sets how long an alert with the same rule and severity is
// suppressed after firing. Zero disables deduplication.
func WithDedupWindow(d time.Duration) EngineOption {
	return func(e *Engine) { e.dedupWindow = d }
}

// WithEvaluateInterval sets how often Start evaluates the health source.
func WithEvaluateInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// NewEngine creates an alert engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		lastFired:   make(map[string]time.Time),
		lastStatus:  StatusHealthy,
		clock:       clock.Real{},
		logger:      zerolog.Nop(),
		dedupWindow: defaultDedupWindow,
		interval:    defaultEvaluateInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Notify records an alert and forwards it to persister and notifiers unless
// an alert with the same rule and severity fired within the dedup window.
func (e *Engine) Notify(a Alert) {
	e.mu.Lock()
	now := e.clock.Now()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.FiredAt.IsZero() {
		a.FiredAt = now
	}

	key := a.alertKey()
	if last, ok := e.lastFired[key]; ok && e.dedupWindow > 0 && now.Sub(last) < e.dedupWindow {
		e.mu.Unlock()
		e.logger.Debug().Str("rule", a.Rule).Msg("suppressing duplicate alert")
		return
	}
	e.lastFired[key] = now

	e.recent = append(e.recent, a)
	if len(e.recent) > maxRecentAlerts {
		e.recent = e.recent[len(e.recent)-maxRecentAlerts:]
	}
	persister := e.persister
	notifiers := e.notifiers
	e.mu.Unlock()

	if persister != nil {
		persister.PersistAlert(a)
	}
	for _, n := range notifiers {
		n.Notify(a)
	}
}

// Alerts returns the retained alerts, newest first.
func (e *Engine) Alerts() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Alert, len(e.recent))
	for i, a := range e.recent {
		out[len(e.recent)-1-i] = a
	}
	return out
}

// Evaluate checks the health source once and fires alerts for degradation
// and for quota usage crossing 90%.
func (e *Engine) Evaluate() {
	if e.source == nil {
		return
	}
	snap := e.source.Snapshot()

	e.mu.Lock()
	prev := e.lastStatus
	e.lastStatus = snap.Status
	quotaCrossed := snap.QuotaLimited && snap.QuotaPercent >= quotaAlertPercent && !e.quotaAlertActive
	e.quotaAlertActive = snap.QuotaLimited && snap.QuotaPercent >= quotaAlertPercent
	e.mu.Unlock()

	if statusRank(snap.Status) > statusRank(prev) {
		severity := SeverityWarning
		if snap.Status == StatusCritical {
			severity = SeverityCritical
		}
		msg := fmt.Sprintf("Email health degraded from %s to %s", prev, snap.Status)
		if len(snap.Issues) > 0 {
			msg += ": " + strings.Join(snap.Issues, "; ")
		}
		e.Notify(Alert{Rule: RuleHealthDegraded, Severity: severity, Message: msg})
	}

	if quotaCrossed {
		e.Notify(Alert{
			Rule:     RuleQuotaNearLimit,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Daily email quota at %d%%", snap.QuotaPercent),
		})
	}
}

// Start evaluates the health source periodically until ctx is cancelled or
// Stop is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Evaluate()
			}
		}
	}()
}

// Stop halts periodic evaluation and waits for the loop to exit.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}
