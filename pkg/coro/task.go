package coro

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Cursor is the resumption position within a task's step sequence.
type Cursor uint

// StepFunc is one resumable unit of work. It is called once per tick while its
// task is active, with the current cursor and the task's user data, and returns
// the next cursor.
//
// Returning the same cursor re-runs the same step on the next tick. Returning a
// cursor greater than the task's final cursor completes the task. The step at the
// final cursor must therefore eventually return finalCursor+1 (typically via
// Scheduler.ReturnNow) or the task never finishes. For that reason the final
// cursor must be below math.MaxUint: no cursor can exceed it.
type StepFunc func(cursor Cursor, data any) Cursor

// Task is a task record: a step function plus its resumption state.
//
// Records are created inactive by NewTask and activated with Scheduler.Start.
// The scheduler never owns or releases the user data; freeOnFinish only controls
// whether the record itself is released when it leaves its slot.
type Task struct {
	name         string
	step         StepFunc
	data         any
	finalCursor  Cursor
	freeOnFinish bool

	sched       *Scheduler
	slot        int
	active      bool
	cursor      Cursor
	waitTimer   time.Duration
	steps       uint64
	startedPass uint64
	state       TaskState
}

// TaskOption configures a Task at creation time.
type TaskOption func(*Task)

// WithName sets a custom name for a task. Names are used in logs and events only.
func WithName(name string) TaskOption {
	return func(t *Task) {
		if name != "" {
			t.name = name
		}
	}
}

// NewTask allocates an inactive task record with cursor 0.
//
// NewTask panics if step is nil or finalCursor is math.MaxUint (configuration
// errors).
func NewTask(step StepFunc, finalCursor Cursor, data any, freeOnFinish bool, opts ...TaskOption) *Task {
	if step == nil {
		panic("coro: NewTask called with nil StepFunc")
	}
	if finalCursor == math.MaxUint {
		panic("coro: NewTask final cursor must be below math.MaxUint")
	}
	t := &Task{
		name:         "task-" + uuid.New().String()[:8],
		step:         step,
		data:         data,
		finalCursor:  finalCursor,
		freeOnFinish: freeOnFinish,
		slot:         -1,
		state:        TaskStateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Cursor returns the current resumption position.
func (t *Task) Cursor() Cursor { return t.cursor }

// FinalCursor returns the last valid step index.
func (t *Task) FinalCursor() Cursor { return t.finalCursor }

// WaitTimer returns the time accumulated by the pending WaitFor call.
func (t *Task) WaitTimer() time.Duration { return t.waitTimer }

// Active reports whether the task occupies a slot.
func (t *Task) Active() bool { return t.active }

// Slot returns the occupied slot index, or -1 while inactive.
func (t *Task) Slot() int { return t.slot }

// State returns the lifecycle state.
func (t *Task) State() TaskState { return t.state }

// Data returns the user data, or nil once the record has been released.
func (t *Task) Data() any { return t.data }

// Steps returns the number of step invocations since the task was last started.
func (t *Task) Steps() uint64 { return t.steps }

// FreeOnFinish reports whether the record is released when it leaves its slot.
func (t *Task) FreeOnFinish() bool { return t.freeOnFinish }

// Freed reports whether the record has been released.
func (t *Task) Freed() bool { return t.state == TaskStateFreed }

func (t *Task) transition(next TaskState) error {
	if !t.state.CanTransitionTo(next) {
		return &InvalidTransitionError{Task: t.name, From: t.state, To: next}
	}
	t.state = next
	return nil
}

// release drops everything the record references. The record stays allocated
// while callers hold it but can never be started again.
func (t *Task) release() {
	t.step = nil
	t.data = nil
	t.sched = nil
	t.state = TaskStateFreed
}
