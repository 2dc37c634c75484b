// Package mailer sends the application's email and reports every attempt to
// the delivery monitor.
//
// A Transport delivers one Message. MonitoredSender wraps any Transport, times
// each send and records the outcome; Verifier renders the account
// verification email on top of it.
package mailer

import (
	"context"

	"github.com/nixlim/mailwatch/internal/config"
)

// Message is one outbound email. When both bodies are set the message is
// sent as multipart/alternative.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Transport delivers a message. Errors carry a monitor error code readable
// with CodeOf.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// NoopTransport accepts every message and delivers nothing. It is used when
// no SMTP host is configured.
type NoopTransport struct{}

// Send does nothing.
func (NoopTransport) Send(context.Context, Message) error { return nil }

// NewTransport returns an SMTP transport for cfg, or a NoopTransport when no
// host is configured.
func NewTransport(cfg config.SMTPConfig) Transport {
	if cfg.Host == "" {
		return NoopTransport{}
	}
	return NewSMTPTransport(cfg)
}
