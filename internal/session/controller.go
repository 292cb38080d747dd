package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/scrypster/penchant/internal/extract"
	"github.com/scrypster/penchant/internal/llm"
	"github.com/scrypster/penchant/internal/store"
	"github.com/scrypster/penchant/pkg/types"
)

// ErrSessionClosed is returned when a turn arrives after the session reached
// its terminal phase.
var ErrSessionClosed = errors.New("session is closed")

// Controller defaults.
const (
	// DefaultWindowSize is the rolling extraction context in turns.
	DefaultWindowSize = 6

	// DefaultMaxTurns is the user-turn budget before the session closes.
	DefaultMaxTurns = 30

	// stallLimit is how many consecutive candidate-free turns trigger a
	// more specific probe.
	stallLimit = 2

	// retryBackoff is the pause before the single gateway retry.
	retryBackoff = 500 * time.Millisecond
)

// exitSignals end the session when a user turn matches one of them.
var exitSignals = []string{
	"that's all", "that is all", "stop", "quit", "exit", "bye", "goodbye", "i'm done", "im done",
}

// retractionPattern recognizes an explicit user-directed retraction. The
// capture group is the statement to retract.
var retractionPattern = regexp.MustCompile(`(?i)^(?:that's no longer true about|that's no longer true:?|forget that|i no longer)\s*(.*)$`)

// Config tunes a controller. Zero values take the documented defaults.
type Config struct {
	WindowSize int
	MaxTurns   int
	// Sleep is the backoff between the first gateway attempt and the
	// single retry. Tests inject a no-op.
	Sleep func(time.Duration)
}

// Controller drives one elicitation session. Turns are processed strictly
// sequentially: the caller must not invoke HandleTurn concurrently for the
// same controller.
type Controller struct {
	extractor *extract.Extractor
	prefs     store.PreferenceStore
	state     *ConversationState
	fsm       *FSM
	cfg       Config

	// pending is the most recently inserted record awaiting confirmation.
	pending *types.PreferenceRecord

	// stallCount counts consecutive turns with zero extracted candidates;
	// escalation walks the specific-prompt ladder. Both are session-local
	// and reset when extraction succeeds.
	stallCount int
	escalation int

	// promptIdx rotates through the open story prompts.
	promptIdx int
}

// NewController creates a controller for a fresh session.
func NewController(extractor *extract.Extractor, prefs store.PreferenceStore, cfg Config) *Controller {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Controller{
		extractor: extractor,
		prefs:     prefs,
		state:     NewConversationState(),
		fsm:       NewFSM(),
		cfg:       cfg,
	}
}

// Greeting returns the session's opening message.
func (c *Controller) Greeting() string {
	return greetingMessage
}

// Phase returns the current dialogue phase.
func (c *Controller) Phase() types.Phase {
	return c.fsm.Phase()
}

// State exposes the conversation history, e.g. for session logging.
func (c *Controller) State() *ConversationState {
	return c.state
}

// HandleTurn processes one user turn end to end: append to history, extract
// candidates over the rolling window, upsert them, advance the phase, and
// choose the next utterance.
//
// Store corruption or persistence failures are returned to the caller —
// there is no safe default for those. Gateway failures never surface: they
// are retried once, then degraded to pattern extraction.
func (c *Controller) HandleTurn(ctx context.Context, userText string) (string, error) {
	if c.fsm.Terminal() {
		return "", ErrSessionClosed
	}

	turn := c.state.Append(types.SpeakerUser, userText)

	// Explicit exit signal ends the session from any phase.
	if isExitSignal(userText) {
		c.fsm.Fire(EventExitSignal)
		return c.respond(c.closingReply(ctx)), nil
	}

	// A turn arriving while we are confirming is the user's answer to the
	// confirmation question, whatever else it contains.
	var answering *types.PreferenceRecord
	if c.fsm.Phase() == types.PhaseConfirming {
		c.fsm.Fire(EventAcknowledged)
		answering, c.pending = c.pending, nil
	} else {
		c.fsm.Fire(EventUserTurn)
	}

	// Explicit user-directed retraction deletes rather than extracts. A
	// bare "that's no longer true" while confirming retracts the record
	// under confirmation.
	if target, ok := retractionTarget(userText); ok {
		reply, err := c.retract(ctx, target, answering)
		if err != nil {
			return "", err
		}
		return c.respond(reply), nil
	}

	candidates, degraded := c.extractWithRetry(ctx, turn)

	inserted, err := c.upsertAll(ctx, candidates)
	if err != nil {
		return "", err
	}

	if len(candidates) == 0 {
		c.stallCount++
	} else {
		c.stallCount = 0
		c.escalation = 0
	}

	if len(inserted) > 0 {
		c.pending = inserted[0]
		c.fsm.Fire(EventNewPreference)
	}

	if c.state.UserTurnCount() >= c.cfg.MaxTurns {
		c.fsm.Fire(EventTurnLimit)
	}

	return c.respond(c.nextUtterance(ctx, degraded, len(candidates))), nil
}

// extractWithRetry calls the extractor, retrying once with backoff on a
// retryable gateway failure, then falling back to pattern extraction.
// The bool result reports degraded (pattern-only) mode.
func (c *Controller) extractWithRetry(ctx context.Context, turn types.Turn) ([]types.Candidate, bool) {
	window := c.state.Window(c.cfg.WindowSize)

	candidates, err := c.extractor.Extract(ctx, turn, window)
	if err != nil && llm.IsRetryable(err) {
		log.Printf("session %s: extraction failed (%v), retrying once", c.state.SessionID, err)
		c.cfg.Sleep(retryBackoff)
		candidates, err = c.extractor.Extract(ctx, turn, window)
	}
	if err != nil {
		log.Printf("session %s: extraction degraded to patterns (%v)", c.state.SessionID, err)
		return c.extractor.ExtractDegraded(turn), true
	}
	return candidates, false
}

// upsertAll stores every candidate and returns the records that were newly
// inserted (as opposed to merged into an existing record).
func (c *Controller) upsertAll(ctx context.Context, candidates []types.Candidate) ([]*types.PreferenceRecord, error) {
	var inserted []*types.PreferenceRecord
	for _, cand := range candidates {
		rec, err := c.prefs.Upsert(ctx, cand)
		if err != nil {
			return nil, fmt.Errorf("storing preference: %w", err)
		}
		// Inserts leave created_at and updated_at equal; merges advance
		// updated_at. That equality is the only insert/merge signal the
		// store contract exposes.
		if rec.UpdatedAt.Equal(rec.CreatedAt) {
			inserted = append(inserted, rec)
		}
	}
	return inserted, nil
}

// retract removes preferences by similarity to the target text, or the
// record under confirmation when the retraction names no target.
func (c *Controller) retract(ctx context.Context, target string, answering *types.PreferenceRecord) (string, error) {
	var matcher store.Matcher
	switch {
	case target != "":
		matcher = store.MatchSimilar(target, store.DefaultMergeThreshold)
	case answering != nil:
		matcher = store.MatchID(answering.ID)
	default:
		return "Which preference should I forget?", nil
	}

	n, err := c.prefs.Retract(ctx, matcher)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmptyStore) {
		return "I don't think I had that one noted, but understood.", nil
	}
	if err != nil {
		return "", fmt.Errorf("retracting preference: %w", err)
	}
	if n == 1 {
		return "Got it — I've forgotten that one.", nil
	}
	return fmt.Sprintf("Got it — I've forgotten %d related notes.", n), nil
}

// nextUtterance chooses the reply for the current phase.
func (c *Controller) nextUtterance(ctx context.Context, degraded bool, candidateCount int) string {
	switch c.fsm.Phase() {
	case types.PhaseClosing:
		return c.closingReply(ctx)

	case types.PhaseConfirming:
		if c.pending != nil {
			return confirmationPrompt(c.pending)
		}
		return c.nextProbe()

	default:
		if degraded && candidateCount == 0 {
			return degradedMessage
		}
		return c.nextProbe()
	}
}

// nextProbe picks the probing question: after stallLimit candidate-free
// turns it escalates to the specific-category ladder, otherwise it rotates
// through the open story prompts.
func (c *Controller) nextProbe() string {
	if c.stallCount >= stallLimit {
		prompt := escalationPrompts[c.escalation%len(escalationPrompts)]
		c.escalation++
		return prompt
	}
	prompt := storyPrompts[c.promptIdx%len(storyPrompts)]
	c.promptIdx++
	return prompt
}

// closingReply summarizes the stored preferences.
func (c *Controller) closingReply(ctx context.Context) string {
	records, err := c.prefs.ListAll(ctx)
	if err != nil {
		log.Printf("session %s: listing preferences for summary: %v", c.state.SessionID, err)
		records = nil
	}
	return closingSummary(records)
}

// respond appends the assistant reply to the history and returns it.
func (c *Controller) respond(reply string) string {
	c.state.Append(types.SpeakerAssistant, reply)
	return reply
}

// isExitSignal reports whether a user turn is an explicit end-of-session
// signal.
func isExitSignal(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, ".!?")
	for _, sig := range exitSignals {
		if normalized == sig {
			return true
		}
	}
	return false
}

// retractionTarget extracts the statement to retract from an explicit
// retraction phrasing, if the turn is one.
func retractionTarget(text string) (string, bool) {
	m := retractionPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(m[1]), ".!?"), true
}
