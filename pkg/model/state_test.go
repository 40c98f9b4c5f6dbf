package model

import "testing"

func TestRunState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    RunState
		terminal bool
	}{
		{RunStateRunning, false},
		{RunStateCompleted, true},
		{RunStateCancelled, true},
		{RunStateFailed, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("RunState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestRunState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  RunState
		to    RunState
		valid bool
	}{
		{RunStateRunning, RunStateCompleted, true},
		{RunStateRunning, RunStateCancelled, true},
		{RunStateRunning, RunStateFailed, true},
		{RunStateCompleted, RunStateRunning, false},
		{RunStateFailed, RunStateCompleted, false},
		{RunStateRunning, RunStateRunning, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestParseRunState(t *testing.T) {
	if st, ok := ParseRunState("COMPLETED"); !ok || st != RunStateCompleted {
		t.Errorf("ParseRunState(COMPLETED) = %q, %v", st, ok)
	}
	for _, bad := range []string{"", "completed", "PENDING"} {
		if _, ok := ParseRunState(bad); ok {
			t.Errorf("ParseRunState(%q) accepted", bad)
		}
	}
}
