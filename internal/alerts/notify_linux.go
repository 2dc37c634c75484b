//go:build linux

package alerts

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// NotifySendNotifier sends Linux desktop notifications via notify-send.
// Notifications are sent in a non-blocking goroutine so that recording a
// send attempt never waits on notification delivery.
type NotifySendNotifier struct {
	// enabled controls whether notifications are actually sent.
	// When false, Notify is a no-op.
	enabled bool
	logger  zerolog.Logger
}

// NewNotifySendNotifier creates a new Linux notification sender.
// If enabled is false, notifications are silently dropped.
func NewNotifySendNotifier(enabled bool, logger zerolog.Logger) *NotifySendNotifier {
	return &NotifySendNotifier{enabled: enabled, logger: logger}
}

// NewPlatformNotifier creates the platform-appropriate notifier for Linux.
func NewPlatformNotifier(enabled bool, logger zerolog.Logger) Notifier {
	return NewNotifySendNotifier(enabled, logger)
}

// Notify sends a Linux desktop notification for the given alert.
// The call returns immediately; errors are logged but otherwise ignored.
func (n *NotifySendNotifier) Notify(alert Alert) {
	if !n.enabled {
		return
	}

	title := fmt.Sprintf("mailwatch: %s", alert.Rule)
	body := truncateMessage(alert.Message)
	if alert.Code != "" {
		body = fmt.Sprintf("%s\n%s", alert.Code, body)
	}

	urgency := "normal"
	if alert.Severity == SeverityCritical {
		urgency = "critical"
	}

	go func() {
		if err := sendNotifySend(title, body, urgency); err != nil {
			n.logger.Warn().Err(err).Msg("failed to send Linux notification")
		}
	}()
}

// sendNotifySend executes notify-send to display a desktop notification.
func sendNotifySend(title, body, urgency string) error {
	cmd := exec.Command("notify-send", "--urgency", urgency, "--app-name", "mailwatch", title, body)
	return cmd.Run()
}
