package coro

import "time"

// TaskStatus is a point-in-time view of one occupied slot.
type TaskStatus struct {
	Slot         int           `json:"slot"`
	Generation   uint64        `json:"generation"`
	Name         string        `json:"name"`
	Cursor       Cursor        `json:"cursor"`
	FinalCursor  Cursor        `json:"final_cursor"`
	WaitTimer    time.Duration `json:"wait_timer_ns"`
	Steps        uint64        `json:"steps"`
	FreeOnFinish bool          `json:"free_on_finish"`
	State        TaskState     `json:"state"`
}

// Snapshot is a point-in-time view of a Scheduler. It shares no memory with the
// scheduler and may be handed to other goroutines.
type Snapshot struct {
	Active      bool          `json:"active"`
	Capacity    int           `json:"capacity"`
	ActiveCount int           `json:"active_count"`
	Passes      uint64        `json:"passes"`
	TickDelta   time.Duration `json:"tick_delta_ns"`
	LastTick    time.Time     `json:"last_tick"`
	Tasks       []TaskStatus  `json:"tasks"`
}

// Get finds a task status by name.
func (s Snapshot) Get(name string) (TaskStatus, bool) {
	for _, st := range s.Tasks {
		if st.Name == name {
			return st, true
		}
	}
	return TaskStatus{}, false
}

// Snapshot returns the current state of every occupied slot, in slot order.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Active:      s.active,
		Capacity:    len(s.slots),
		ActiveCount: s.activeCount,
		Passes:      s.pass,
		TickDelta:   s.tickDelta,
		LastTick:    s.lastTick,
		Tasks:       make([]TaskStatus, 0, s.activeCount),
	}
	for i, sl := range s.slots {
		t := sl.task
		if t == nil {
			continue
		}
		snap.Tasks = append(snap.Tasks, TaskStatus{
			Slot:         i,
			Generation:   sl.gen,
			Name:         t.name,
			Cursor:       t.cursor,
			FinalCursor:  t.finalCursor,
			WaitTimer:    t.waitTimer,
			Steps:        t.steps,
			FreeOnFinish: t.freeOnFinish,
			State:        t.state,
		})
	}
	return snap
}
