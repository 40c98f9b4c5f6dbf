package coro

import "fmt"

// Handle identifies one activation of a task: a slot index plus the generation
// the slot had when the task was started. The zero Handle is never live.
//
// A handle goes stale the moment its task leaves the slot, whether the task
// completed, was stopped, freed or force-stopped by Terminate. Generations are
// never reused by a Scheduler, so a stale handle cannot become live again.
type Handle struct {
	slot int
	gen  uint64
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

// Slot returns the slot index the handle refers to.
func (h Handle) Slot() int { return h.slot }

// Generation returns the slot generation captured at Start.
func (h Handle) Generation() uint64 { return h.gen }

func (h Handle) String() string {
	if h.IsZero() {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%d#%d)", h.slot, h.gen)
}
