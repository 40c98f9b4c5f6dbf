package coro

// Handler runs one state of a Sequence and returns the next cursor.
type Handler func(data any) Cursor

// Sequence builds a step function that dispatches cursor i to handlers[i] and
// returns it together with the matching final cursor (len(handlers)-1).
//
// Sequence panics if no handlers are given.
func Sequence(handlers ...Handler) (StepFunc, Cursor) {
	if len(handlers) == 0 {
		panic("coro: Sequence requires at least one handler")
	}
	hs := append([]Handler(nil), handlers...)
	return func(c Cursor, data any) Cursor {
		if int(c) >= len(hs) {
			return c
		}
		return hs[c](data)
	}, Cursor(len(hs) - 1)
}

// NewSequenceTask creates a task that runs handlers in order, one state per cursor.
func NewSequenceTask(data any, freeOnFinish bool, handlers []Handler, opts ...TaskOption) *Task {
	step, final := Sequence(handlers...)
	return NewTask(step, final, data, freeOnFinish, opts...)
}

// Typed adapts a step function over a concrete user data type. Data of any other
// type is passed as the zero value of T.
func Typed[T any](fn func(cursor Cursor, data T) Cursor) StepFunc {
	return func(c Cursor, data any) Cursor {
		v, _ := data.(T)
		return fn(c, v)
	}
}
