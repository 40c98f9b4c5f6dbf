// Package coro implements a bounded-capacity, single-threaded cooperative task
// scheduler.
//
// Callers register step functions that represent resumable units of work. A host
// loop calls Scheduler.Iterate once per time quantum (for example once per frame)
// and every active task is advanced by exactly one step per pass.
//
//	s := coro.New()
//	if err := s.Initialize(8); err != nil {
//		return err
//	}
//	defer s.Terminate()
//
//	t := coro.NewTask(func(c coro.Cursor, data any) coro.Cursor {
//		switch c {
//		case 0:
//			return s.ReturnNow()
//		case 1:
//			return s.WaitForSeconds(2)
//		default:
//			return s.ReturnNow()
//		}
//	}, 2, nil, false)
//	h, err := s.Start(t)
//
// # Step protocol
//
// A step function receives the task's cursor and user data and returns the next
// cursor. No call stack survives between ticks: anything that must persist lives in
// the user data. A task completes the instant it returns a cursor greater than its
// final cursor, so the step at the final cursor must advance (usually via ReturnNow),
// otherwise it runs forever.
//
// Sequence offers the same contract as one handler per state.
//
// # Handles
//
// Start returns a Handle, a slot index plus a generation number. A handle stops
// being live as soon as its task leaves the slot for any reason (completion, Stop,
// StopCurrent, Free or Terminate). Use IsAlive or Lookup instead of keeping raw
// task pointers around to decide whether work is still running.
//
// # Concurrency
//
// A Scheduler is not safe for concurrent use. Exactly one step function runs at a
// time, synchronously inside Iterate. Step functions may start, stop or free tasks
// (including themselves) and may terminate the scheduler.
package coro
