package model

import "testing"

func TestRunState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    RunState
		terminal bool
	}{
		{RunStateQueued, false},
		{RunStateDispatched, false},
		{RunStateRunning, false},
		{RunStateCompleted, true},
		{RunStateFailed, true},
		{RunStateCancelled, true},
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
		// Valid transitions
		{RunStateQueued, RunStateDispatched, true},
		{RunStateQueued, RunStateFailed, true},
		{RunStateQueued, RunStateCancelled, true},
		{RunStateDispatched, RunStateRunning, true},
		{RunStateDispatched, RunStateCompleted, true},
		{RunStateDispatched, RunStateFailed, true},
		{RunStateDispatched, RunStateCancelled, true},
		{RunStateRunning, RunStateCompleted, true},
		{RunStateRunning, RunStateFailed, true},
		{RunStateRunning, RunStateCancelled, true},

		// Invalid transitions
		{RunStateQueued, RunStateRunning, false},
		{RunStateQueued, RunStateCompleted, false},
		{RunStateCompleted, RunStateQueued, false},
		{RunStateFailed, RunStateCancelled, false},
		{RunStateCancelled, RunStateDispatched, false},
		{RunStateRunning, RunStateQueued, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("RunState(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}
