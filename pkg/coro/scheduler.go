package coro

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type slot struct {
	task *Task
	gen  uint64
}

// Scheduler owns a fixed-capacity slot table of active tasks and advances each of
// them by one step per Iterate call.
//
// The zero value is not usable; create instances with New. A Scheduler is inactive
// until Initialize and can be re-initialized after Terminate.
type Scheduler struct {
	clock       Clock
	logger      *slog.Logger
	observer    Observer
	maxCapacity int

	active      bool
	slots       []slot
	activeCount int
	nextGen     uint64
	epoch       uint64
	pass        uint64

	ticked    bool
	lastTick  time.Time
	tickDelta time.Duration

	current     *Task
	currentSlot int
	currentGen  uint64
}

// New creates an inactive Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:       SystemClock{},
		logger:      discardLogger(),
		maxCapacity: DefaultMaxCapacity,
		currentSlot: -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Initialize allocates a slot table for capacity concurrently active tasks.
//
// It fails with ErrAlreadyInitialized if the scheduler is active and with
// ErrAllocationFailure if capacity is below 1 or above the configured maximum.
// A failed Initialize leaves the scheduler unchanged.
func (s *Scheduler) Initialize(capacity int) error {
	if s.active {
		return s.fail("initialize", nil, ErrAlreadyInitialized)
	}
	if capacity < 1 || capacity > s.maxCapacity {
		return s.fail("initialize", nil,
			fmt.Errorf("%w: capacity %d outside [1, %d]", ErrAllocationFailure, capacity, s.maxCapacity))
	}

	s.slots = make([]slot, capacity)
	s.activeCount = 0
	s.ticked = false
	s.lastTick = time.Time{}
	s.tickDelta = 0
	s.epoch++
	s.active = true
	s.logger.Debug("scheduler initialized", "capacity", capacity)
	return nil
}

// Terminate force-stops every active task (honoring each task's freeOnFinish),
// releases the slot table and marks the scheduler inactive.
//
// It may be called from inside a step function; the running Iterate then stops
// visiting slots.
func (s *Scheduler) Terminate() error {
	if !s.active {
		return s.fail("terminate", nil, ErrNotInitialized)
	}
	var errs []error
	for i := range s.slots {
		if t := s.slots[i].task; t != nil {
			if err := s.deactivate(t, ReasonTerminated); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.slots = nil
	s.activeCount = 0
	s.active = false
	s.logger.Debug("scheduler terminated", "passes", s.pass)
	return errors.Join(errs...)
}

// Iterate runs one pass: it samples the clock, updates the tick delta and calls
// the step function of every occupied slot once, in slot order.
//
// A task whose step returns a cursor beyond its final cursor is stopped before the
// next slot is visited. Tasks started during the pass are first stepped on the
// next pass. A panicking step stops its task; the panic is returned as a
// *StepPanicError after the pass completes.
//
// Iterate must not be called from inside a step function.
func (s *Scheduler) Iterate() error {
	if !s.active {
		return s.fail("iterate", nil, ErrNotInitialized)
	}
	if s.current != nil {
		panic("coro: Iterate called from inside a step function")
	}

	now := s.clock.Now()
	s.tickDelta = 0
	if d := now.Sub(s.lastTick); s.ticked && d > 0 {
		s.tickDelta = d
	}
	s.ticked = true
	s.lastTick = now
	s.pass++

	pass, epoch := s.pass, s.epoch
	n := len(s.slots)
	var errs []error

	for i := 0; i < n; i++ {
		if !s.live(epoch) {
			break
		}
		sl := s.slots[i]
		t := sl.task
		if t == nil || t.startedPass == pass {
			continue
		}

		next, perr := s.step(t, i, sl.gen)
		if perr != nil {
			errs = append(errs, perr)
		}
		if !s.live(epoch) {
			break
		}
		// Stopped, freed or restarted from inside its own step: the return value
		// belongs to an activation that no longer exists.
		if cur := s.slots[i]; cur.task != t || cur.gen != sl.gen {
			continue
		}
		if perr != nil {
			if err := s.deactivate(t, ReasonPanicked); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		t.cursor = next
		if next > t.finalCursor {
			if err := s.deactivate(t, ReasonCompleted); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) live(epoch uint64) bool {
	return s.active && s.epoch == epoch
}

func (s *Scheduler) step(t *Task, slotIdx int, gen uint64) (next Cursor, err error) {
	s.current, s.currentSlot, s.currentGen = t, slotIdx, gen
	cursor := t.cursor
	defer func() {
		s.current, s.currentSlot, s.currentGen = nil, -1, 0
		if r := recover(); r != nil {
			err = &StepPanicError{Task: t.name, Slot: slotIdx, Cursor: cursor, Value: r}
			s.logger.Error("step panicked", "task", t.name, "slot", slotIdx, "cursor", cursor, "panic", r)
		}
	}()
	t.steps++
	return t.step(cursor, t.data), nil
}

// Start activates t in the first free slot and returns a handle to that activation.
// The task's cursor and wait timer restart from zero.
func (s *Scheduler) Start(t *Task) (Handle, error) {
	switch {
	case t == nil || t.Freed():
		return Handle{}, s.fail("start", t, ErrInvalidHandle)
	case t.active:
		return Handle{}, s.fail("start", t, ErrAlreadyActive)
	case !s.active:
		return Handle{}, s.fail("start", t, ErrNotInitialized)
	}

	i := s.findFreeSlot()
	if i < 0 {
		return Handle{}, s.fail("start", t, ErrSchedulerFull)
	}
	if err := t.transition(TaskStateActive); err != nil {
		return Handle{}, s.fail("start", t, err)
	}

	s.nextGen++
	s.slots[i] = slot{task: t, gen: s.nextGen}
	s.activeCount++

	t.sched = s
	t.slot = i
	t.active = true
	t.cursor = 0
	t.waitTimer = 0
	t.steps = 0
	t.startedPass = s.pass

	h := Handle{slot: i, gen: s.nextGen}
	s.logger.Debug("task started", "task", t.name, "slot", i, "final_cursor", t.finalCursor)
	if s.observer != nil {
		s.observer.TaskStarted(s.event(t, h, ReasonStarted))
	}
	return h, nil
}

// Stop deactivates t. Its handle goes stale immediately and, if the task was
// created with freeOnFinish, the record is released.
//
// Stopping an inactive task is a no-op.
func (s *Scheduler) Stop(t *Task) error {
	if t == nil || t.Freed() {
		return s.fail("stop", t, ErrInvalidHandle)
	}
	if !t.active {
		return nil
	}
	if t.sched != s {
		return s.fail("stop", t, fmt.Errorf("%w: task active on another scheduler", ErrInvalidHandle))
	}
	return s.deactivate(t, ReasonStopped)
}

// Free releases t unconditionally, deregistering it first if it is still active.
// A released record rejects every later operation with ErrInvalidHandle.
func (s *Scheduler) Free(t *Task) error {
	if t == nil || t.Freed() {
		return s.fail("free", t, ErrInvalidHandle)
	}
	if t.active {
		if t.sched != s {
			return s.fail("free", t, fmt.Errorf("%w: task active on another scheduler", ErrInvalidHandle))
		}
		if err := s.deactivate(t, ReasonFreed); err != nil {
			return err
		}
	}
	if !t.Freed() {
		t.release()
	}
	return nil
}

// deactivate removes an active task from its slot and notifies the observer.
// It is the only place activeCount is decremented.
func (s *Scheduler) deactivate(t *Task, reason Reason) error {
	i := t.slot
	h := Handle{slot: i, gen: s.slots[i].gen}
	ev := s.event(t, h, reason)

	s.slots[i].task = nil
	s.activeCount--
	t.active = false
	t.slot = -1
	t.sched = nil

	err := t.transition(reason.state())
	if err != nil {
		s.logger.Error("task transition", "task", t.name, "error", err)
	}
	s.logger.Debug("task finished", "task", t.name, "slot", i, "reason", reason, "cursor", t.cursor)
	if s.observer != nil {
		s.observer.TaskFinished(ev)
	}
	if t.freeOnFinish || reason == ReasonFreed {
		t.release()
	}
	return err
}

// findFreeSlot returns the first empty slot index, or -1 when full.
func (s *Scheduler) findFreeSlot() int {
	if s.activeCount >= len(s.slots) {
		return -1
	}
	for i := range s.slots {
		if s.slots[i].task == nil {
			return i
		}
	}
	return -1
}

func (s *Scheduler) event(t *Task, h Handle, reason Reason) Event {
	return Event{
		Handle:      h,
		Name:        t.name,
		Slot:        h.slot,
		Cursor:      t.cursor,
		FinalCursor: t.finalCursor,
		Steps:       t.steps,
		Reason:      reason,
		Pass:        s.pass,
		At:          s.clock.Now(),
	}
}

func (s *Scheduler) fail(op string, t *Task, err error) error {
	name := ""
	if t != nil {
		name = t.name
	}
	s.logger.Debug(op+" failed", "task", name, "error", err)
	return err
}

// IsActive reports whether the scheduler is initialized.
func (s *Scheduler) IsActive() bool { return s.active }

// ActiveCount returns the number of occupied slots.
func (s *Scheduler) ActiveCount() int { return s.activeCount }

// Capacity returns the slot table size, or 0 while inactive.
func (s *Scheduler) Capacity() int { return len(s.slots) }

// TickDelta returns the time elapsed between the last two Iterate calls.
func (s *Scheduler) TickDelta() time.Duration { return s.tickDelta }

// Passes returns the number of Iterate passes run by this scheduler.
func (s *Scheduler) Passes() uint64 { return s.pass }

// IsAlive reports whether h still refers to an active task.
func (s *Scheduler) IsAlive(h Handle) bool {
	_, ok := s.Lookup(h)
	return ok
}

// Lookup returns the task behind a live handle.
func (s *Scheduler) Lookup(h Handle) (*Task, bool) {
	if h.IsZero() || !s.active || h.slot < 0 || h.slot >= len(s.slots) {
		return nil, false
	}
	sl := s.slots[h.slot]
	if sl.task == nil || sl.gen != h.gen {
		return nil, false
	}
	return sl.task, true
}

// CurrentID returns the slot of the task whose step function is executing.
// It returns (-1, false) outside a step function.
func (s *Scheduler) CurrentID() (int, bool) {
	if s.current == nil {
		return -1, false
	}
	return s.currentSlot, true
}

// CurrentHandle returns the handle of the activation being stepped.
func (s *Scheduler) CurrentHandle() (Handle, bool) {
	if s.current == nil {
		return Handle{}, false
	}
	return Handle{slot: s.currentSlot, gen: s.currentGen}, true
}

// StopCurrent stops the task whose step function is executing. The step's return
// value is discarded. Outside a step function it does nothing.
func (s *Scheduler) StopCurrent() {
	if s.current == nil || !s.current.active {
		return
	}
	_ = s.Stop(s.current)
}
