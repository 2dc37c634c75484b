package mailer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/clock"
	"github.com/nixlim/mailwatch/internal/monitor"
)

// Recorder receives the outcome of each send. *monitor.Monitor satisfies it.
type Recorder interface {
	RecordSuccess(responseTimeMs int)
	RecordFailure(err monitor.SendError, responseTimeMs int)
}

// Option configures a MonitoredSender.
type Option func(*MonitoredSender)

// WithClock sets the time source used to measure send latency.
func WithClock(c clock.Clock) Option {
	return func(s *MonitoredSender) { s.clock = c }
}

// WithLogger sets the sender's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *MonitoredSender) { s.log = l }
}

// MonitoredSender is a Transport that reports every send to a Recorder.
type MonitoredSender struct {
	transport Transport
	rec       Recorder
	clock     clock.Clock
	log       zerolog.Logger
}

func NewMonitoredSender(t Transport, rec Recorder, opts ...Option) *MonitoredSender {
	s := &MonitoredSender{
		transport: t,
		rec:       rec,
		clock:     clock.Real{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers msg through the wrapped transport and records the attempt
// with its latency. The transport's error is returned unchanged.
func (s *MonitoredSender) Send(ctx context.Context, msg Message) error {
	start := s.clock.Now()
	err := s.transport.Send(ctx, msg)
	elapsed := int(s.clock.Now().Sub(start).Milliseconds())

	if err == nil {
		s.rec.RecordSuccess(elapsed)
		s.log.Debug().Int("response_ms", elapsed).Msg("email sent")
		return nil
	}

	code := CodeOf(err)
	s.rec.RecordFailure(monitor.SendError{Message: err.Error(), Code: code}, elapsed)
	s.log.Warn().Err(err).Str("code", code).Int("response_ms", elapsed).Msg("email send failed")
	return err
}

var _ Transport = (*MonitoredSender)(nil)
