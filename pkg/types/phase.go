package types

// Phase is a dialogue phase of an elicitation session.
type Phase string

// Dialogue phase constants for the elicitation state machine.
const (
	PhaseGreeting   Phase = "greeting"   // Session opened, no user turn yet
	PhaseProbing    Phase = "probing"    // Asking open questions to surface preferences
	PhaseConfirming Phase = "confirming" // Confirming a freshly extracted preference
	PhaseClosing    Phase = "closing"    // Terminal: summary emitted, session over
)

// ValidPhases contains all valid dialogue phase values.
var ValidPhases = []Phase{
	PhaseGreeting,
	PhaseProbing,
	PhaseConfirming,
	PhaseClosing,
}

// IsValidPhase checks if the given phase is a valid dialogue phase.
func IsValidPhase(phase Phase) bool {
	for _, p := range ValidPhases {
		if phase == p {
			return true
		}
	}
	return false
}

// IsValidPhaseTransition validates phase transitions according to the
// elicitation state machine.
//
// Valid transitions:
//
//	greeting   -> probing | closing
//	probing    -> confirming | closing
//	confirming -> probing | closing
//	closing    -> (terminal, no transitions out)
//
// Self-transitions (staying in the current phase across a turn) are valid
// for every phase except closing.
func IsValidPhaseTransition(current, next Phase) bool {
	if current == next {
		return current != PhaseClosing
	}

	switch current {
	case PhaseGreeting:
		return next == PhaseProbing || next == PhaseClosing

	case PhaseProbing:
		return next == PhaseConfirming || next == PhaseClosing

	case PhaseConfirming:
		return next == PhaseProbing || next == PhaseClosing

	case PhaseClosing:
		return false // Terminal phase, no transitions out

	default:
		return false // Unknown current phase
	}
}
