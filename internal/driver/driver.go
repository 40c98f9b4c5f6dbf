// Package driver runs a coro.Scheduler on a wall-clock tick.
package driver

import "context"

// Driver owns the goroutine that iterates a scheduler.
type Driver interface {
	// Start begins the tick loop. Blocks until ctx is cancelled, Stop is
	// called or an exit condition from Config is met.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the loop.
	Stop() error

	// Tick runs a single scheduler pass. Used for testing.
	Tick(ctx context.Context) error
}

// ExitReason records why Start returned.
type ExitReason string

const (
	ExitNone      ExitReason = ""
	ExitIdle      ExitReason = "IDLE"
	ExitMaxTicks  ExitReason = "MAX_TICKS"
	ExitStopped   ExitReason = "STOPPED"
	ExitCancelled ExitReason = "CANCELLED"
	ExitFailed    ExitReason = "FAILED"
)
