package coro

import (
	"io"
	"log/slog"
)

// DefaultMaxCapacity is the largest capacity Initialize accepts unless
// WithMaxCapacity says otherwise.
const DefaultMaxCapacity = 1 << 16

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock sampled by Iterate. Nil keeps the default SystemClock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. The scheduler logs under component=coro.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l.With("component", "coro")
		}
	}
}

// WithObserver registers lifecycle hooks.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithMaxCapacity bounds the capacity accepted by Initialize. Values < 1 are ignored.
func WithMaxCapacity(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxCapacity = n
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
