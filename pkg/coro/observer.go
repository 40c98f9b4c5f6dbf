package coro

import "time"

// Observer receives task lifecycle events.
//
// Hooks are called synchronously on the Iterate path (or from Start/Stop/Free/
// Terminate). They must be fast and must not call back into the Scheduler.
type Observer interface {
	TaskStarted(Event)
	TaskFinished(Event)
}

// Event describes one task lifecycle transition.
type Event struct {
	Handle      Handle
	Name        string
	Slot        int
	Cursor      Cursor
	FinalCursor Cursor
	Steps       uint64
	Reason      Reason
	Pass        uint64
	At          time.Time
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStart  func(Event)
	OnFinish func(Event)
}

func (o ObserverFuncs) TaskStarted(ev Event) {
	if o.OnStart != nil {
		o.OnStart(ev)
	}
}

func (o ObserverFuncs) TaskFinished(ev Event) {
	if o.OnFinish != nil {
		o.OnFinish(ev)
	}
}
