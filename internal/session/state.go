package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/penchant/pkg/types"
)

// ConversationState holds one session's ordered turn history. It lives for
// the session's duration and can be persisted as a session log at the end.
type ConversationState struct {
	SessionID string
	StartedAt time.Time
	Turns     []types.Turn
}

// NewConversationState creates an empty session history.
func NewConversationState() *ConversationState {
	return &ConversationState{
		SessionID: uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Append records a turn and returns it with its assigned id and timestamp.
func (cs *ConversationState) Append(speaker types.Speaker, text string) types.Turn {
	turn := types.Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	cs.Turns = append(cs.Turns, turn)
	return turn
}

// Window returns the last n turns (or all of them when fewer exist), used as
// rolling extraction context.
func (cs *ConversationState) Window(n int) []types.Turn {
	if n <= 0 || len(cs.Turns) <= n {
		return cs.Turns
	}
	return cs.Turns[len(cs.Turns)-n:]
}

// UserTurnCount returns how many turns the user has taken.
func (cs *ConversationState) UserTurnCount() int {
	count := 0
	for _, t := range cs.Turns {
		if t.Speaker == types.SpeakerUser {
			count++
		}
	}
	return count
}
