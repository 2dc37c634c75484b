package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/config"
	"github.com/nixlim/mailwatch/internal/mailer"
	"github.com/nixlim/mailwatch/internal/monitor"
)

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		QuotaLimit:    cfg.Quota.DailyLimit,
		MaxEvents:     cfg.Monitor.MaxEvents,
		AverageWindow: cfg.Monitor.AverageWindow,
		RetainOnReset: cfg.Monitor.RetainedOnReset,
		ResetInterval: cfg.Monitor.ResetInterval(),
	}
}

// healthAdapter exposes the monitor's health to the alert engine. mon is set
// after construction because the monitor itself notifies the engine.
type healthAdapter struct {
	mon *monitor.Monitor
}

func (h *healthAdapter) Snapshot() alerts.HealthSnapshot {
	if h.mon == nil {
		return alerts.HealthSnapshot{Status: string(monitor.StatusHealthy)}
	}
	health := h.mon.HealthStatus()
	return alerts.HealthSnapshot{
		Status:       string(health.Status),
		Issues:       health.Issues,
		QuotaPercent: h.mon.QuotaUsagePercentage(),
		QuotaLimited: h.mon.Stats().QuotaLimit > 0,
	}
}

// RunTestEmail sends a single verification email to addr through the
// configured SMTP transport and prints the outcome along with the resulting
// statistics.
//
// Exit codes:
//   - 0: the message was accepted
//   - 1: the send failed or the template could not be built
func RunTestEmail(cfg *config.Config, addr string) int {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if cfg.SMTP.Host == "" {
		fmt.Fprintln(os.Stderr, "Warning: smtp.host is not set, the message will not leave this process.")
	}

	mon := monitor.New(monitorConfig(cfg), monitor.WithLogger(logger))
	sender := mailer.NewMonitoredSender(mailer.NewTransport(cfg.SMTP), mon, mailer.WithLogger(logger))

	verifier, err := mailer.NewVerifier(sender, cfg.SMTP)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SMTP.Timeout()+5*time.Second)
	defer cancel()

	token := uuid.NewString()
	sendErr := verifier.SendVerification(ctx, addr, "", token)

	stats := mon.Stats()
	fmt.Printf("Sent: %d  Failed: %d  Avg response: %dms\n", stats.TotalSent, stats.TotalFailed, stats.AverageResponseTimeMs)

	if sendErr != nil {
		fmt.Fprintf(os.Stderr, "Send failed [%s]: %v\n", mailer.CodeOf(sendErr), sendErr)
		return 1
	}
	fmt.Printf("Verification email sent to %s\n", addr)
	fmt.Printf("Link: %s\n", verifier.VerificationLink(token))
	return 0
}
