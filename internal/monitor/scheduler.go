package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/clock"
)

// Resetter is the reset operation driven by the Scheduler. It receives the
// boundary the timer waited for and must do nothing if that boundary has
// already been reset.
type Resetter interface {
	ResetForBoundary(boundary time.Time) bool
}

// Scheduler resets daily statistics at the next UTC midnight and then every
// interval after that. It must be started explicitly.
type Scheduler struct {
	target   Resetter
	clock    clock.Clock
	after    func(time.Duration) <-chan time.Time
	interval time.Duration
	logger   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the time source used to find midnight.
func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithTimer overrides time.After, letting tests fire resets on demand.
func WithTimer(after func(time.Duration) <-chan time.Time) SchedulerOption {
	return func(s *Scheduler) { s.after = after }
}

// WithInterval sets the period between resets after the first one.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(l zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler that resets target.
func NewScheduler(target Resetter, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		target:   target,
		clock:    clock.Real{},
		after:    time.After,
		interval: 24 * time.Hour,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextUTCMidnight returns the first UTC midnight strictly after now.
func NextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

// Start runs the reset loop in a goroutine until ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
}

// Stop halts the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	now := s.clock.Now()
	boundary := NextUTCMidnight(now)
	wait := boundary.Sub(now)
	s.logger.Debug().Dur("wait", wait).Msg("first daily reset scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.after(wait):
			if !s.target.ResetForBoundary(boundary) {
				s.logger.Debug().Time("boundary", boundary).Msg("epoch already reset")
			}
			boundary = boundary.Add(s.interval)
			wait = s.interval
		}
	}
}
