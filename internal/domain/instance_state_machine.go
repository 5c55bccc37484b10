package domain

import (
	"fmt"
)

// InstanceState represents the current state of a workflow instance
type InstanceState string

const (
	// InstanceStateDraft indicates the instance was created but not submitted
	InstanceStateDraft InstanceState = "Draft"
	// InstanceStateRunning indicates the instance is positioned at a node
	InstanceStateRunning InstanceState = "Running"
	// InstanceStateError indicates the instance halted (no assignee resolved,
	// no matching branch) and needs administrative intervention
	InstanceStateError InstanceState = "Error"
	// InstanceStateCompleted indicates the instance reached an end node
	InstanceStateCompleted InstanceState = "Completed"
	// InstanceStateRejected indicates an approver rejected the instance
	InstanceStateRejected InstanceState = "Rejected"
	// InstanceStateCancelled indicates the initiator or an admin cancelled it
	InstanceStateCancelled InstanceState = "Cancelled"
)

// InstanceTransition represents an action that can change instance state
type InstanceTransition string

const (
	// TransitionSubmit starts a drafted instance
	TransitionSubmit InstanceTransition = "Submit"
	// TransitionComplete marks the instance as completed at an end node
	TransitionComplete InstanceTransition = "Complete"
	// TransitionReject marks the instance as rejected by an approver
	TransitionReject InstanceTransition = "Reject"
	// TransitionCancel cancels a running or halted instance
	TransitionCancel InstanceTransition = "Cancel"
	// TransitionHalt moves a running instance into the error state
	TransitionHalt InstanceTransition = "Halt"
)

// InstanceStateMachine enforces valid state transitions for workflow
// instances. Invalid transitions return an error (fail-fast approach).
type InstanceStateMachine struct {
	// transitions maps (current state, transition) -> next state
	transitions map[stateTransitionKey]InstanceState
}

type stateTransitionKey struct {
	state      InstanceState
	transition InstanceTransition
}

// NewInstanceStateMachine creates a state machine with the instance
// lifecycle rules.
// State diagram:
//
//	 [Draft] --Submit--> [Running] --Complete--> [Completed]
//	                        |  \--Reject-------> [Rejected]
//	                        |  \--Cancel-------> [Cancelled]
//	                      Halt
//	                        v
//	                     [Error] --Cancel------> [Cancelled]
//
// Completed, Rejected and Cancelled are terminal.
func NewInstanceStateMachine() *InstanceStateMachine {
	sm := &InstanceStateMachine{
		transitions: make(map[stateTransitionKey]InstanceState),
	}

	sm.addTransition(InstanceStateDraft, TransitionSubmit, InstanceStateRunning)
	sm.addTransition(InstanceStateRunning, TransitionComplete, InstanceStateCompleted)
	sm.addTransition(InstanceStateRunning, TransitionReject, InstanceStateRejected)
	sm.addTransition(InstanceStateRunning, TransitionCancel, InstanceStateCancelled)
	sm.addTransition(InstanceStateRunning, TransitionHalt, InstanceStateError)
	sm.addTransition(InstanceStateError, TransitionCancel, InstanceStateCancelled)

	return sm
}

func (sm *InstanceStateMachine) addTransition(from InstanceState, via InstanceTransition, to InstanceState) {
	key := stateTransitionKey{state: from, transition: via}
	sm.transitions[key] = to
}

// Transition attempts to transition from the current state using the given action.
// Returns the new state or an error if the transition is invalid.
func (sm *InstanceStateMachine) Transition(current InstanceState, action InstanceTransition) (InstanceState, error) {
	key := stateTransitionKey{state: current, transition: action}
	next, ok := sm.transitions[key]
	if !ok {
		return current, fmt.Errorf("invalid state transition: cannot %s from %s", action, current)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it.
func (sm *InstanceStateMachine) CanTransition(current InstanceState, action InstanceTransition) bool {
	key := stateTransitionKey{state: current, transition: action}
	_, ok := sm.transitions[key]
	return ok
}

// ValidTransitions returns all valid transitions from the given state.
func (sm *InstanceStateMachine) ValidTransitions(state InstanceState) []InstanceTransition {
	var result []InstanceTransition
	for key := range sm.transitions {
		if key.state == state {
			result = append(result, key.transition)
		}
	}
	return result
}

// IsTerminal returns true if the state is a terminal state (no further transitions).
func (sm *InstanceStateMachine) IsTerminal(state InstanceState) bool {
	return state == InstanceStateCompleted ||
		state == InstanceStateRejected ||
		state == InstanceStateCancelled
}
