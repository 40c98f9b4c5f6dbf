package journal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/me/gocoro/internal/logging"
	"github.com/me/gocoro/pkg/coro"
	"github.com/me/gocoro/pkg/model"
)

// Recorder is a coro.Observer that appends every task start and finish of
// one run to a Store.
type Recorder struct {
	ctx    context.Context
	store  Store
	runID  string
	logger *slog.Logger

	mu       sync.Mutex
	started  int
	finished int
	err      error
}

var _ coro.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder for runID. Writes outlive cancellation of
// ctx so that events emitted while shutting down are still journaled.
func NewRecorder(ctx context.Context, store Store, runID string, logger *slog.Logger) *Recorder {
	return &Recorder{
		ctx:    context.WithoutCancel(ctx),
		store:  store,
		runID:  runID,
		logger: logging.Component(logger, "recorder").With("run_id", runID),
	}
}

func (r *Recorder) TaskStarted(ev coro.Event) {
	r.record(ev, func() { r.started++ })
}

func (r *Recorder) TaskFinished(ev coro.Event) {
	r.record(ev, func() { r.finished++ })
}

func (r *Recorder) record(ev coro.Event, count func()) {
	te := &model.TaskEvent{
		RunID:       r.runID,
		Task:        ev.Name,
		Slot:        ev.Slot,
		Generation:  ev.Handle.Generation(),
		Event:       ev.Reason.String(),
		Cursor:      uint(ev.Cursor),
		FinalCursor: uint(ev.FinalCursor),
		Steps:       ev.Steps,
		Pass:        ev.Pass,
		At:          ev.At,
	}
	err := r.store.AppendEvent(r.ctx, te)

	r.mu.Lock()
	defer r.mu.Unlock()
	count()
	if err != nil {
		r.logger.Error("journal event", "task", ev.Name, "event", te.Event, "error", err)
		if r.err == nil {
			r.err = err
		}
	}
}

// Counts returns how many starts and finishes have been observed.
func (r *Recorder) Counts() (started, finished int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, r.finished
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
