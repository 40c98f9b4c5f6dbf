package model

import (
	"time"

	"github.com/google/uuid"
)

// Run is one journaled execution of a workload by the tick driver.
type Run struct {
	ID         string     `json:"id"`
	Workload   string     `json:"workload"`
	Capacity   int        `json:"capacity"`
	State      RunState   `json:"state"`
	Ticks      uint64     `json:"ticks"`
	Started    int        `json:"tasks_started"`
	Finished   int        `json:"tasks_finished"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Transition moves the run to next, rejecting invalid transitions.
func (r *Run) Transition(next RunState) error {
	if !r.State.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "Run", ID: r.ID, From: r.State.String(), To: next.String()}
	}
	r.State = next
	return nil
}

// TaskEvent is one task lifecycle transition recorded during a Run.
type TaskEvent struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Task        string    `json:"task"`
	Slot        int       `json:"slot"`
	Generation  uint64    `json:"generation"`
	Event       string    `json:"event"`
	Cursor      uint      `json:"cursor"`
	FinalCursor uint      `json:"final_cursor"`
	Steps       uint64    `json:"steps"`
	Pass        uint64    `json:"pass"`
	At          time.Time `json:"at"`
}

// RunDetail is a Run together with its recorded events.
type RunDetail struct {
	Run
	Events []TaskEvent `json:"events"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}
