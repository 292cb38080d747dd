// Package session implements the elicitation controller: a per-session
// dialogue state machine that feeds user turns through the extractor, upserts
// the resulting candidates, and chooses the next system utterance.
package session

import "github.com/scrypster/penchant/pkg/types"

// Event is a dialogue event that may drive a phase transition.
type Event string

const (
	// EventUserTurn fires on the first user turn of the session.
	EventUserTurn Event = "user_turn"

	// EventNewPreference fires when extraction produced at least one new
	// (non-merged) preference record this turn.
	EventNewPreference Event = "new_preference"

	// EventAcknowledged fires when the user acknowledges or corrects a
	// preference the bot asked to confirm.
	EventAcknowledged Event = "acknowledged"

	// EventExitSignal fires on an explicit user exit ("that's all", "stop").
	EventExitSignal Event = "exit_signal"

	// EventTurnLimit fires when the configured maximum turn count is reached.
	EventTurnLimit Event = "turn_limit"
)

// transitions is the explicit transition table for the elicitation dialogue.
// Events absent from a phase's row leave the phase unchanged.
var transitions = map[types.Phase]map[Event]types.Phase{
	types.PhaseGreeting: {
		EventUserTurn:   types.PhaseProbing,
		EventExitSignal: types.PhaseClosing,
		EventTurnLimit:  types.PhaseClosing,
	},
	types.PhaseProbing: {
		EventNewPreference: types.PhaseConfirming,
		EventExitSignal:    types.PhaseClosing,
		EventTurnLimit:     types.PhaseClosing,
	},
	types.PhaseConfirming: {
		EventAcknowledged: types.PhaseProbing,
		EventExitSignal:   types.PhaseClosing,
		EventTurnLimit:    types.PhaseClosing,
	},
	types.PhaseClosing: {}, // Terminal
}

// FSM tracks the dialogue phase of one session. It is deliberately free of
// any LLM or store dependency so the transition table is testable on its own.
type FSM struct {
	phase types.Phase
}

// NewFSM creates a state machine in the greeting phase.
func NewFSM() *FSM {
	return &FSM{phase: types.PhaseGreeting}
}

// Phase returns the current dialogue phase.
func (f *FSM) Phase() types.Phase {
	return f.phase
}

// Terminal reports whether the session has reached the closing phase.
func (f *FSM) Terminal() bool {
	return f.phase == types.PhaseClosing
}

// Fire applies an event to the current phase. It returns the resulting phase
// and whether a transition happened; events with no entry in the table leave
// the phase unchanged.
func (f *FSM) Fire(ev Event) (types.Phase, bool) {
	next, ok := transitions[f.phase][ev]
	if !ok || !types.IsValidPhaseTransition(f.phase, next) {
		return f.phase, false
	}
	f.phase = next
	return f.phase, true
}
