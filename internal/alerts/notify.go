package alerts

import "github.com/rs/zerolog"

// LogNotifier writes every alert to a structured logger. Critical alerts are
// logged at error level, everything else at warn.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs through logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(alert Alert) {
	ev := n.logger.Warn()
	if alert.Severity == SeverityCritical {
		ev = n.logger.Error()
	}
	ev.Str("alert_id", alert.ID).
		Str("rule", alert.Rule).
		Str("severity", alert.Severity).
		Str("code", alert.Code).
		Time("fired_at", alert.FiredAt).
		Msg(alert.Message)
}

// truncateMessage shortens an alert message for display in notifications.
func truncateMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= 120 {
		return msg
	}
	return string(runes[:120]) + "..."
}
