package types_test

import (
	"testing"

	"github.com/scrypster/penchant/pkg/types"
)

func TestValidPhases(t *testing.T) {
	validPhases := []types.Phase{"greeting", "probing", "confirming", "closing"}

	for _, phase := range validPhases {
		if !types.IsValidPhase(phase) {
			t.Errorf("Expected %s to be a valid phase", phase)
		}
	}
}

func TestInvalidPhases(t *testing.T) {
	invalidPhases := []types.Phase{"", "open", "done", "PROBING"}

	for _, phase := range invalidPhases {
		if types.IsValidPhase(phase) {
			t.Errorf("Expected %s to be an invalid phase", phase)
		}
	}
}

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current types.Phase
		next    types.Phase
		valid   bool
	}{
		{"greeting to probing on first user turn", types.PhaseGreeting, types.PhaseProbing, true},
		{"greeting straight to closing on exit signal", types.PhaseGreeting, types.PhaseClosing, true},
		{"greeting cannot skip to confirming", types.PhaseGreeting, types.PhaseConfirming, false},
		{"probing to confirming on new candidate", types.PhaseProbing, types.PhaseConfirming, true},
		{"probing to closing", types.PhaseProbing, types.PhaseClosing, true},
		{"probing cannot rewind to greeting", types.PhaseProbing, types.PhaseGreeting, false},
		{"confirming back to probing after acknowledgement", types.PhaseConfirming, types.PhaseProbing, true},
		{"confirming to closing", types.PhaseConfirming, types.PhaseClosing, true},
		{"closing is terminal", types.PhaseClosing, types.PhaseProbing, false},
		{"closing cannot self-transition", types.PhaseClosing, types.PhaseClosing, false},
		{"probing self-transition across turns", types.PhaseProbing, types.PhaseProbing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := types.IsValidPhaseTransition(tt.current, tt.next); got != tt.valid {
				t.Errorf("IsValidPhaseTransition(%s, %s) = %v, want %v", tt.current, tt.next, got, tt.valid)
			}
		})
	}
}
