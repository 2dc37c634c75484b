//go:build !linux && !darwin

package alerts

import "github.com/rs/zerolog"

// NewPlatformNotifier returns a notifier that drops alerts on platforms
// without a supported desktop notification mechanism.
func NewPlatformNotifier(enabled bool, logger zerolog.Logger) Notifier {
	return NotifierFunc(func(Alert) {})
}
