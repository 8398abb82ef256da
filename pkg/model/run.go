package model

import "time"

// Run is a specific execution of a Workflow with concrete parameter values.
type Run struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	State      RunState       `json:"state"`
	Values     map[string]any `json:"values,omitempty"`   // Raw UI values as submitted
	Bindings   []Binding      `json:"bindings,omitempty"` // Component-id to path bindings
	Inputs     map[string]any `json:"inputs"`             // Resolved path -> value map
	PromptID   string         `json:"prompt_id,omitempty"` // Engine correlation id
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RunState represents the lifecycle state of a Run.
type RunState string

const (
	RunStateQueued     RunState = "QUEUED"
	RunStateDispatched RunState = "DISPATCHED"
	RunStateRunning    RunState = "RUNNING"
	RunStateCompleted  RunState = "COMPLETED"
	RunStateFailed     RunState = "FAILED"
	RunStateCancelled  RunState = "CANCELLED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCancelled:
		return true
	}
	return false
}

// ValidRunTransitions defines the allowed state transitions for Runs.
var ValidRunTransitions = map[RunState][]RunState{
	RunStateQueued:     {RunStateDispatched, RunStateFailed, RunStateCancelled},
	RunStateDispatched: {RunStateRunning, RunStateCompleted, RunStateFailed, RunStateCancelled},
	RunStateRunning:    {RunStateCompleted, RunStateFailed, RunStateCancelled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
