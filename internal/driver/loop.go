package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/gocoro/internal/logging"
	"github.com/me/gocoro/pkg/coro"
)

// Config holds tick loop configuration.
type Config struct {
	TickInterval time.Duration
	StopWhenIdle bool   // exit once no task is active
	MaxTicks     uint64 // exit after this many passes, 0 for unlimited
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TickInterval: 10 * time.Millisecond, StopWhenIdle: true}
}

// Loop implements Driver with a ticker-based loop. Only the loop goroutine
// touches the scheduler; other goroutines read the published Snapshot.
type Loop struct {
	sched  *coro.Scheduler
	config Config
	logger *slog.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	mu     sync.RWMutex
	snap   coro.Snapshot
	ticks  uint64
	errs   uint64
	reason ExitReason
}

var _ Driver = (*Loop)(nil)

// NewLoop creates a tick loop for an initialized scheduler.
func NewLoop(sched *coro.Scheduler, cfg Config, logger *slog.Logger) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	return &Loop{
		sched:  sched,
		config: cfg,
		logger: logging.Component(logger, "driver"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		snap:   sched.Snapshot(),
	}
}

// Start runs passes until an exit condition is met. The first pass runs
// immediately. It returns ctx.Err() on cancellation and nil otherwise.
func (l *Loop) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("driver already started")
	}
	defer close(l.doneCh)

	l.logger.Info("driver started", "tick_interval", l.config.TickInterval,
		"stop_when_idle", l.config.StopWhenIdle, "max_ticks", l.config.MaxTicks)
	ticker := time.NewTicker(l.config.TickInterval)
	defer ticker.Stop()

	for {
		if err := l.Tick(ctx); err != nil {
			if errors.Is(err, coro.ErrNotInitialized) {
				l.exit(ExitFailed)
				return err
			}
			l.logger.Error("tick error", "error", err)
		}
		if reason := l.exitCondition(); reason != ExitNone {
			l.exit(reason)
			return nil
		}

		select {
		case <-ctx.Done():
			l.exit(ExitCancelled)
			return ctx.Err()
		case <-l.stopCh:
			l.exit(ExitStopped)
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loop) exitCondition() ExitReason {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch {
	case l.config.MaxTicks > 0 && l.ticks >= l.config.MaxTicks:
		return ExitMaxTicks
	case l.config.StopWhenIdle && l.snap.ActiveCount == 0:
		return ExitIdle
	}
	return ExitNone
}

func (l *Loop) exit(reason ExitReason) {
	snap := l.sched.Snapshot()
	l.mu.Lock()
	l.snap = snap
	l.reason = reason
	ticks := l.ticks
	l.mu.Unlock()
	l.logger.Info("driver stopped", "reason", reason, "ticks", ticks)
}

// Stop asks the loop to exit and waits for the current pass to finish.
// Stopping a loop that was never started is a no-op.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	if l.started.Load() {
		<-l.doneCh
	}
	return nil
}

// Close terminates the scheduler if it is still active and publishes the
// final snapshot, so readers see Active == false. It must not be called while
// Start is running.
func (l *Loop) Close() error {
	var err error
	if l.sched.IsActive() {
		err = l.sched.Terminate()
	}
	snap := l.sched.Snapshot()
	l.mu.Lock()
	l.snap = snap
	l.mu.Unlock()
	return err
}

// Tick runs one scheduler pass and publishes a fresh snapshot.
func (l *Loop) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := l.sched.Iterate()
	snap := l.sched.Snapshot()

	l.mu.Lock()
	l.snap = snap
	if !errors.Is(err, coro.ErrNotInitialized) {
		l.ticks++
	}
	if err != nil {
		l.errs++
	}
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("pass %d: %w", snap.Passes, err)
	}
	return nil
}

// Snapshot returns the scheduler state published after the latest pass.
func (l *Loop) Snapshot() coro.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Ticks returns the number of passes run by this loop.
func (l *Loop) Ticks() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ticks
}

// TickErrors returns the number of passes that reported an error.
func (l *Loop) TickErrors() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.errs
}

// Reason returns why Start returned, or ExitNone while it is running.
func (l *Loop) Reason() ExitReason {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reason
}

// Done is closed when Start returns.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}
