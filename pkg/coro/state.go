package coro

// TaskState represents the lifecycle state of a Task.
type TaskState string

const (
	TaskStateIdle       TaskState = "IDLE"
	TaskStateActive     TaskState = "ACTIVE"
	TaskStateCompleted  TaskState = "COMPLETED"
	TaskStateStopped    TaskState = "STOPPED"
	TaskStateTerminated TaskState = "TERMINATED"
	TaskStatePanicked   TaskState = "PANICKED"
	TaskStateFreed      TaskState = "FREED"
)

// String returns the string representation of the task state.
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal returns true if the task can never run again.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateFreed
}

// IsActive returns true if the task occupies a slot.
func (s TaskState) IsActive() bool {
	return s == TaskStateActive
}

// ValidTaskTransitions defines the allowed state transitions for Tasks.
// Every inactive, unreleased state may be restarted or freed.
var ValidTaskTransitions = map[TaskState][]TaskState{
	TaskStateIdle:       {TaskStateActive, TaskStateFreed},
	TaskStateActive:     {TaskStateCompleted, TaskStateStopped, TaskStateTerminated, TaskStatePanicked},
	TaskStateCompleted:  {TaskStateActive, TaskStateFreed},
	TaskStateStopped:    {TaskStateActive, TaskStateFreed},
	TaskStateTerminated: {TaskStateActive, TaskStateFreed},
	TaskStatePanicked:   {TaskStateActive, TaskStateFreed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	for _, allowed := range ValidTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reason explains why a task left its slot.
type Reason string

const (
	ReasonStarted    Reason = "STARTED"
	ReasonCompleted  Reason = "COMPLETED"
	ReasonStopped    Reason = "STOPPED"
	ReasonTerminated Reason = "TERMINATED"
	ReasonPanicked   Reason = "PANICKED"
	ReasonFreed      Reason = "FREED"
)

func (r Reason) String() string {
	return string(r)
}

// state maps a finish reason to the task state it leaves the task in.
func (r Reason) state() TaskState {
	switch r {
	case ReasonCompleted:
		return TaskStateCompleted
	case ReasonTerminated:
		return TaskStateTerminated
	case ReasonPanicked:
		return TaskStatePanicked
	default:
		return TaskStateStopped
	}
}
