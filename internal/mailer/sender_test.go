package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"

	"github.com/nixlim/mailwatch/internal/clock"
	"github.com/nixlim/mailwatch/internal/monitor"
)

// fakeTransport advances a fake clock by delay on every send and returns err.
type fakeTransport struct {
	clk   *clock.Fake
	delay time.Duration
	err   error

	mu   sync.Mutex
	sent []Message
}

func (f *fakeTransport) Send(_ context.Context, msg Message) error {
	f.clk.Advance(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func newSenderFixture(delay time.Duration, err error) (*MonitoredSender, *monitor.Monitor, *fakeTransport) {
	clk := clock.NewFake(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))
	m := monitor.New(monitor.DefaultConfig(), monitor.WithClock(clk))
	tr := &fakeTransport{clk: clk, delay: delay, err: err}
	return NewMonitoredSender(tr, m, WithClock(clk)), m, tr
}

func TestMonitoredSender_Success(t *testing.T) {
	s, m, tr := newSenderFixture(320*time.Millisecond, nil)

	if err := s.Send(context.Background(), Message{To: "a@example.com"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	stats := m.Stats()
	if stats.TotalSent != 1 || stats.TotalFailed != 0 {
		t.Errorf("sent=%d failed=%d", stats.TotalSent, stats.TotalFailed)
	}
	if stats.AverageResponseTimeMs != 320 {
		t.Errorf("average = %d, want 320", stats.AverageResponseTimeMs)
	}
	if stats.QuotaUsed != 1 {
		t.Errorf("quotaUsed = %d, want 1", stats.QuotaUsed)
	}
	if len(tr.sent) != 1 {
		t.Errorf("transport saw %d messages", len(tr.sent))
	}
}

func TestMonitoredSender_Failure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"coded quota error", oops.Code(CodeQuotaExceeded).Errorf("daily limit"), CodeQuotaExceeded},
		{"coded invalid address", oops.Code(CodeInvalidEmail).Errorf("bad address"), CodeInvalidEmail},
		{"uncoded network error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, CodeNetworkError},
		{"uncoded other error", errors.New("provider said no"), CodeAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m, _ := newSenderFixture(1500*time.Millisecond, tt.err)

			err := s.Send(context.Background(), Message{To: "a@example.com"})
			if err == nil || err.Error() != tt.err.Error() {
				t.Errorf("Send returned %v, want the transport error %v", err, tt.err)
			}

			stats := m.Stats()
			if stats.TotalFailed != 1 || stats.QuotaUsed != 0 {
				t.Errorf("failed=%d quotaUsed=%d", stats.TotalFailed, stats.QuotaUsed)
			}
			if stats.ErrorsByType[tt.wantCode] != 1 {
				t.Errorf("errorsByType = %v, want %s", stats.ErrorsByType, tt.wantCode)
			}
			if stats.LastError == nil || stats.LastError.Code != tt.wantCode {
				t.Errorf("lastError = %+v", stats.LastError)
			}
			if stats.AverageResponseTimeMs != 1500 {
				t.Errorf("average = %d, want 1500", stats.AverageResponseTimeMs)
			}
		})
	}
}

func TestMonitoredSender_QuotaExceededMakesHealthCritical(t *testing.T) {
	s, m, _ := newSenderFixture(10*time.Millisecond, oops.Code(CodeQuotaExceeded).Errorf("quota"))
	_ = s.Send(context.Background(), Message{To: "a@example.com"})

	if h := m.HealthStatus(); h.Status != monitor.StatusCritical {
		t.Errorf("health = %s, want critical", h.Status)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"coded", oops.Code(CodeInvalidEmail).Errorf("x"), CodeInvalidEmail},
		{"coded and wrapped", fmt.Errorf("outer: %w", oops.Code(CodeQuotaExceeded).Errorf("x")), CodeQuotaExceeded},
		{"custom code passes through", oops.Code("PROVIDER_SUSPENDED").Errorf("x"), "PROVIDER_SUSPENDED"},
		{"oops without code", oops.Errorf("x"), CodeAPIError},
		{"deadline", context.DeadlineExceeded, CodeNetworkError},
		{"wrapped net error", fmt.Errorf("send: %w", &net.DNSError{Err: "no such host", Name: "smtp.invalid"}), CodeNetworkError},
		{"plain", errors.New("boom"), CodeAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf = %q, want %q", got, tt.want)
			}
		})
	}
}
