package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceStateMachine_ValidTransitions(t *testing.T) {
	sm := NewInstanceStateMachine()

	tests := []struct {
		name     string
		from     InstanceState
		action   InstanceTransition
		expected InstanceState
	}{
		{"submit draft", InstanceStateDraft, TransitionSubmit, InstanceStateRunning},
		{"complete running", InstanceStateRunning, TransitionComplete, InstanceStateCompleted},
		{"reject running", InstanceStateRunning, TransitionReject, InstanceStateRejected},
		{"cancel running", InstanceStateRunning, TransitionCancel, InstanceStateCancelled},
		{"halt running", InstanceStateRunning, TransitionHalt, InstanceStateError},
		{"cancel halted", InstanceStateError, TransitionCancel, InstanceStateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := sm.Transition(tt.from, tt.action)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestInstanceStateMachine_InvalidTransitions(t *testing.T) {
	sm := NewInstanceStateMachine()

	tests := []struct {
		name   string
		from   InstanceState
		action InstanceTransition
	}{
		{"complete draft", InstanceStateDraft, TransitionComplete},
		{"submit running", InstanceStateRunning, TransitionSubmit},
		{"resubmit halted", InstanceStateError, TransitionSubmit},
		{"reject halted", InstanceStateError, TransitionReject},
		{"cancel completed", InstanceStateCompleted, TransitionCancel},
		{"cancel rejected", InstanceStateRejected, TransitionCancel},
		{"cancel cancelled", InstanceStateCancelled, TransitionCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := sm.Transition(tt.from, tt.action)
			assert.Error(t, err)
			assert.Equal(t, tt.from, next, "state must not change on invalid transition")
		})
	}
}

func TestInstanceStateMachine_CanTransition(t *testing.T) {
	sm := NewInstanceStateMachine()

	assert.True(t, sm.CanTransition(InstanceStateDraft, TransitionSubmit))
	assert.True(t, sm.CanTransition(InstanceStateError, TransitionCancel))
	assert.False(t, sm.CanTransition(InstanceStateCompleted, TransitionCancel))
	assert.False(t, sm.CanTransition(InstanceStateDraft, TransitionHalt))
}

func TestInstanceStateMachine_IsTerminal(t *testing.T) {
	sm := NewInstanceStateMachine()

	assert.True(t, sm.IsTerminal(InstanceStateCompleted))
	assert.True(t, sm.IsTerminal(InstanceStateRejected))
	assert.True(t, sm.IsTerminal(InstanceStateCancelled))
	assert.False(t, sm.IsTerminal(InstanceStateDraft))
	assert.False(t, sm.IsTerminal(InstanceStateRunning))
	assert.False(t, sm.IsTerminal(InstanceStateError), "halted instances can still be cancelled")
}

func TestInstanceStateMachine_ValidTransitionsList(t *testing.T) {
	sm := NewInstanceStateMachine()

	running := sm.ValidTransitions(InstanceStateRunning)
	assert.Len(t, running, 4)
	assert.Contains(t, running, TransitionComplete)
	assert.Contains(t, running, TransitionReject)
	assert.Contains(t, running, TransitionCancel)
	assert.Contains(t, running, TransitionHalt)

	assert.Empty(t, sm.ValidTransitions(InstanceStateCompleted))
}
