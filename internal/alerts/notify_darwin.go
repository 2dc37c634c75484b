//go:build darwin

package alerts

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// OSAScriptNotifier sends macOS system notifications via osascript.
// Notifications are sent in a non-blocking goroutine so that recording a
// send attempt never waits on notification delivery.
type OSAScriptNotifier struct {
	// enabled controls whether notifications are actually sent.
	// When false, Notify is a no-op.
	enabled bool
	logger  zerolog.Logger
}

// NewOSAScriptNotifier creates a new macOS notification sender.
// If enabled is false, notifications are silently dropped.
func NewOSAScriptNotifier(enabled bool, logger zerolog.Logger) *OSAScriptNotifier {
	return &OSAScriptNotifier{enabled: enabled, logger: logger}
}

// NewPlatformNotifier creates the platform-appropriate notifier for macOS.
func NewPlatformNotifier(enabled bool, logger zerolog.Logger) Notifier {
	return NewOSAScriptNotifier(enabled, logger)
}

// Notify sends a macOS notification for the given alert.
func (n *OSAScriptNotifier) Notify(alert Alert) {
	if !n.enabled {
		return
	}

	title := fmt.Sprintf("mailwatch: %s", alert.Rule)
	subtitle := alert.Code
	message := truncateMessage(alert.Message)

	go func() {
		if err := sendOSANotification(title, subtitle, message); err != nil {
			n.logger.Warn().Err(err).Msg("failed to send macOS notification")
		}
	}()
}

// sendOSANotification executes osascript to display a macOS notification.
func sendOSANotification(title, subtitle, message string) error {
	// Escape double quotes in the message to prevent AppleScript injection.
	title = escapeAppleScript(title)
	subtitle = escapeAppleScript(subtitle)
	message = escapeAppleScript(message)

	script := fmt.Sprintf(
		`display notification "%s" with title "%s"`,
		message, title,
	)
	if subtitle != "" {
		script = fmt.Sprintf(
			`display notification "%s" with title "%s" subtitle "%s"`,
			message, title, subtitle,
		)
	}

	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// escapeAppleScript escapes characters that could break AppleScript strings.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
