package coro

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHandle is returned for nil or released task records, and for tasks
	// active on a different scheduler.
	ErrInvalidHandle = errors.New("coro: invalid task handle")
	// ErrAlreadyActive is returned by Start when the task is already running.
	ErrAlreadyActive = errors.New("coro: task already active")
	// ErrSchedulerFull is returned by Start when every slot is occupied.
	ErrSchedulerFull = errors.New("coro: scheduler full")
	// ErrNotInitialized is returned when an operation requires an initialized scheduler.
	ErrNotInitialized = errors.New("coro: scheduler not initialized")
	// ErrAlreadyInitialized is returned by Initialize on an active scheduler.
	ErrAlreadyInitialized = errors.New("coro: scheduler already initialized")
	// ErrAllocationFailure is returned by Initialize when slot storage cannot be
	// acquired for the requested capacity.
	ErrAllocationFailure = errors.New("coro: slot allocation failed")
)

// StepPanicError reports a step function that panicked during Iterate.
// The task is stopped with ReasonPanicked before the error is returned.
type StepPanicError struct {
	Task   string
	Slot   int
	Cursor Cursor
	Value  any
}

func (e *StepPanicError) Error() string {
	return fmt.Sprintf("coro: task %s (slot %d) panicked at cursor %d: %v", e.Task, e.Slot, e.Cursor, e.Value)
}

// InvalidTransitionError is returned when a task lifecycle transition is invalid.
type InvalidTransitionError struct {
	Task string
	From TaskState
	To   TaskState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("coro: invalid task state transition: %s → %s (task %s)", e.From, e.To, e.Task)
}
