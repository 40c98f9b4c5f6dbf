// Package journal persists workload runs and their task lifecycle events.
package journal

import (
	"context"

	"github.com/me/gocoro/pkg/model"
)

// Store defines the persistence layer for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRun(ctx context.Context, run *model.Run) error

	// Task events
	AppendEvent(ctx context.Context, ev *model.TaskEvent) error
	ListEvents(ctx context.Context, runID string) ([]model.TaskEvent, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
