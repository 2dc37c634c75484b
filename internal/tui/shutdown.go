package tui

import (
	"context"
	"time"
)

// ShutdownManager coordinates graceful shutdown of the daemon's components.
type ShutdownManager struct {
	// DrainTimeout bounds the time given to StopIngest.
	DrainTimeout time.Duration

	// StopIngest stops the OTLP receivers and the admin API.
	StopIngest func(ctx context.Context) error

	// StopBackground stops the reset scheduler and the alert engine.
	StopBackground func()

	// Cleanup flushes the history store and the archive queue.
	Cleanup func()
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops ingest first so no attempt is recorded after the
// background workers are gone, then flushes persistent state.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
	defer cancel()

	var err error
	if sm.StopIngest != nil {
		err = sm.StopIngest(ctx)
	}
	if sm.StopBackground != nil {
		sm.StopBackground()
	}
	if sm.Cleanup != nil {
		sm.Cleanup()
	}
	return err
}
