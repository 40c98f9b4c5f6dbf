package coro

import "time"

// The yield helpers operate on the task whose step function is executing and
// panic when called anywhere else.

func (s *Scheduler) mustCurrent(op string) *Task {
	if s.current == nil {
		panic("coro: " + op + " called outside a step function")
	}
	return s.current
}

// ReturnNow advances to the next step on the following tick.
func (s *Scheduler) ReturnNow() Cursor {
	t := s.mustCurrent("ReturnNow")
	return t.cursor + 1
}

// WaitFor holds the cursor until the accumulated tick time reaches d, then resets
// the task's wait timer and advances.
func (s *Scheduler) WaitFor(d time.Duration) Cursor {
	t := s.mustCurrent("WaitFor")
	t.waitTimer += s.tickDelta
	if t.waitTimer >= d {
		t.waitTimer = 0
		return t.cursor + 1
	}
	return t.cursor
}

// WaitForSeconds is WaitFor with the delay given in (fractional) seconds.
func (s *Scheduler) WaitForSeconds(delay float64) Cursor {
	s.mustCurrent("WaitForSeconds")
	return s.WaitFor(Seconds(delay))
}

// ReturnWhile holds the cursor while cond is true and advances once it is false.
// The step function must re-evaluate cond on every call.
func (s *Scheduler) ReturnWhile(cond bool) Cursor {
	t := s.mustCurrent("ReturnWhile")
	if cond {
		return t.cursor
	}
	return t.cursor + 1
}

// Seconds converts fractional seconds to a Duration.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
