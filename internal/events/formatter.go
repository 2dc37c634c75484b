// Package events holds the bounded log of email send attempts and the
// helpers that render those attempts for display.
package events

import (
	"fmt"
	"time"
)

// Format renders an event as a single display line:
//   - success: "15:04:05 ✓ sent (320ms)"
//   - failure: "15:04:05 ✗ QUOTA_EXCEEDED daily limit reached (1.2s)"
func Format(e Event) string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	clock := ts.Local().Format("15:04:05")

	if e.Kind != KindError {
		return fmt.Sprintf("%s ✓ sent (%s)", clock, FormatDurationMS(e.ResponseTimeMs))
	}

	code, msg := "UNKNOWN", ""
	if e.Error != nil {
		if e.Error.Code != "" {
			code = e.Error.Code
		}
		msg = e.Error.Message
	}
	if msg == "" {
		return fmt.Sprintf("%s ✗ %s (%s)", clock, code, FormatDurationMS(e.ResponseTimeMs))
	}
	return fmt.Sprintf("%s ✗ %s %s (%s)", clock, code, truncateMessage(msg, 60), FormatDurationMS(e.ResponseTimeMs))
}

// FormatDurationMS renders a millisecond latency: values under one second as
// "320ms", otherwise seconds with one decimal ("1.2s").
func FormatDurationMS(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// truncateMessage shortens s to maxLen with an ellipsis.
func truncateMessage(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
