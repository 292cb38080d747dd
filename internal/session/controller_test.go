package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/penchant/internal/extract"
	"github.com/scrypster/penchant/internal/llm"
	"github.com/scrypster/penchant/internal/store"
	"github.com/scrypster/penchant/pkg/types"
)

// scriptedGen replays a fixed sequence of gateway responses. Once the script
// is exhausted it returns the no-preference response.
type scriptedGen struct {
	script []genStep
	calls  int
}

type genStep struct {
	text string
	err  error
}

func (g *scriptedGen) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if g.calls >= len(g.script) {
		g.calls++
		return `{"preferences": []}`, nil
	}
	step := g.script[g.calls]
	g.calls++
	return step.text, step.err
}

func (g *scriptedGen) Model() string { return "scripted" }

// stubPrefs is an in-memory PreferenceStore. Upsert merges on exact text
// match only; a text matcher retracts every record, since similarity is not
// what these tests exercise.
type stubPrefs struct {
	records []*types.PreferenceRecord
}

func (s *stubPrefs) Upsert(ctx context.Context, cand types.Candidate) (*types.PreferenceRecord, error) {
	for _, rec := range s.records {
		if rec.Text == cand.Text && rec.Category == cand.Category {
			rec.UpdatedAt = rec.CreatedAt.Add(time.Second)
			return rec.Clone(), nil
		}
	}
	now := time.Now().UTC()
	rec := &types.PreferenceRecord{
		ID:         uuid.NewString(),
		Text:       cand.Text,
		Category:   string(cand.Category),
		Confidence: cand.Confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.records = append(s.records, rec)
	return rec.Clone(), nil
}

func (s *stubPrefs) Query(ctx context.Context, text string, topK int, category string) ([]*types.PreferenceRecord, error) {
	if len(s.records) == 0 {
		return nil, store.ErrEmptyStore
	}
	return s.ListAll(ctx)
}

func (s *stubPrefs) Retract(ctx context.Context, m store.Matcher) (int, error) {
	if len(s.records) == 0 {
		return 0, store.ErrEmptyStore
	}
	var kept []*types.PreferenceRecord
	removed := 0
	for _, rec := range s.records {
		if (m.ID != "" && rec.ID == m.ID) || (m.ID == "" && m.Text != "") {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	if removed == 0 {
		return 0, store.ErrNotFound
	}
	return removed, nil
}

func (s *stubPrefs) ListAll(ctx context.Context) ([]*types.PreferenceRecord, error) {
	out := make([]*types.PreferenceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *stubPrefs) Close() error { return nil }

func newTestController(gen *scriptedGen, prefs *stubPrefs, cfg Config) *Controller {
	if cfg.Sleep == nil {
		cfg.Sleep = func(time.Duration) {}
	}
	return NewController(extract.New(gen), prefs, cfg)
}

const hikingResponse = `{"preferences": [{"text": "enjoys hiking in the mountains", "category": "hobby", "confidence": 0.9}]}`

func TestNewPreferenceEntersConfirming(t *testing.T) {
	gen := &scriptedGen{script: []genStep{{text: hikingResponse}}}
	prefs := &stubPrefs{}
	c := newTestController(gen, prefs, Config{})

	reply, err := c.HandleTurn(context.Background(), "I spent last weekend hiking in the mountains.")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if c.Phase() != types.PhaseConfirming {
		t.Errorf("phase = %s, want %s", c.Phase(), types.PhaseConfirming)
	}
	if !strings.Contains(reply, "enjoys hiking in the mountains") {
		t.Errorf("confirmation reply does not name the preference: %q", reply)
	}
	if len(prefs.records) != 1 {
		t.Errorf("stored %d records, want 1", len(prefs.records))
	}
}

func TestAcknowledgementReturnsToProbing(t *testing.T) {
	gen := &scriptedGen{script: []genStep{{text: hikingResponse}}}
	c := newTestController(gen, &stubPrefs{}, Config{})

	if _, err := c.HandleTurn(context.Background(), "I spent last weekend hiking."); err != nil {
		t.Fatal(err)
	}
	reply, err := c.HandleTurn(context.Background(), "Yes, that's right.")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if c.Phase() != types.PhaseProbing {
		t.Errorf("phase after acknowledgement = %s, want %s", c.Phase(), types.PhaseProbing)
	}
	if reply == "" {
		t.Error("expected a probing question after acknowledgement")
	}
}

func TestStallEscalatesToSpecificPrompts(t *testing.T) {
	gen := &scriptedGen{} // every turn extracts nothing
	c := newTestController(gen, &stubPrefs{}, Config{})

	ctx := context.Background()
	first, _ := c.HandleTurn(ctx, "Hello.")
	second, _ := c.HandleTurn(ctx, "Not much to say.")
	third, _ := c.HandleTurn(ctx, "Hmm.")

	if first != storyPrompts[0] {
		t.Errorf("first probe = %q, want the opening story prompt", first)
	}
	if second != escalationPrompts[0] {
		t.Errorf("second probe = %q, want first escalation prompt", second)
	}
	if third != escalationPrompts[1] {
		t.Errorf("third probe = %q, want second escalation prompt", third)
	}
}

func TestExitSignalClosesWithSummary(t *testing.T) {
	gen := &scriptedGen{script: []genStep{{text: hikingResponse}}}
	prefs := &stubPrefs{}
	c := newTestController(gen, prefs, Config{})

	ctx := context.Background()
	if _, err := c.HandleTurn(ctx, "I love hiking."); err != nil {
		t.Fatal(err)
	}
	reply, err := c.HandleTurn(ctx, "That's all!")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if c.Phase() != types.PhaseClosing {
		t.Errorf("phase = %s, want %s", c.Phase(), types.PhaseClosing)
	}
	if !strings.Contains(reply, "enjoys hiking in the mountains") {
		t.Errorf("closing summary omits the stored preference: %q", reply)
	}

	if _, err := c.HandleTurn(ctx, "one more thing"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("turn after close returned %v, want ErrSessionClosed", err)
	}
}

func TestTurnLimitClosesSession(t *testing.T) {
	gen := &scriptedGen{}
	c := newTestController(gen, &stubPrefs{}, Config{MaxTurns: 2})

	ctx := context.Background()
	if _, err := c.HandleTurn(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if c.Phase() == types.PhaseClosing {
		t.Fatal("closed before the turn limit")
	}
	if _, err := c.HandleTurn(ctx, "second"); err != nil {
		t.Fatal(err)
	}
	if c.Phase() != types.PhaseClosing {
		t.Errorf("phase after limit = %s, want %s", c.Phase(), types.PhaseClosing)
	}
}

func TestGatewayFailureRetriesOnceThenDegrades(t *testing.T) {
	gen := &scriptedGen{script: []genStep{
		{err: llm.ErrGatewayTimeout},
		{err: llm.ErrGatewayTimeout},
	}}
	prefs := &stubPrefs{}
	sleeps := 0
	c := newTestController(gen, prefs, Config{Sleep: func(time.Duration) { sleeps++ }})

	reply, err := c.HandleTurn(context.Background(), "I love hiking in the mountains.")
	if err != nil {
		t.Fatalf("gateway failure surfaced to caller: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("gateway called %d times, want 2 (one retry)", gen.calls)
	}
	if sleeps != 1 {
		t.Errorf("slept %d times, want 1", sleeps)
	}
	// Pattern fallback still catches the obvious phrasing.
	if len(prefs.records) != 1 {
		t.Fatalf("degraded extraction stored %d records, want 1", len(prefs.records))
	}
	if prefs.records[0].Category != types.CategoryUncategorized {
		t.Errorf("degraded record category = %q, want uncategorized", prefs.records[0].Category)
	}
	if strings.Contains(reply, "unavailable") || strings.Contains(reply, "error") {
		t.Errorf("degraded reply leaks the failure: %q", reply)
	}
}

func TestGatewayFailureWithNoPatternMatchAsksForMore(t *testing.T) {
	gen := &scriptedGen{script: []genStep{
		{err: llm.ErrGatewayUnavailable},
		{err: llm.ErrGatewayUnavailable},
	}}
	c := newTestController(gen, &stubPrefs{}, Config{})

	reply, err := c.HandleTurn(context.Background(), "Okay then.")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if reply != degradedMessage {
		t.Errorf("reply = %q, want %q", reply, degradedMessage)
	}
}

func TestRetractionRemovesPreference(t *testing.T) {
	gen := &scriptedGen{script: []genStep{{text: hikingResponse}}}
	prefs := &stubPrefs{}
	c := newTestController(gen, prefs, Config{})

	ctx := context.Background()
	if _, err := c.HandleTurn(ctx, "I love hiking."); err != nil {
		t.Fatal(err)
	}
	reply, err := c.HandleTurn(ctx, "Forget that I enjoy hiking in the mountains.")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(reply, "forgotten") {
		t.Errorf("retraction reply = %q", reply)
	}
	if len(prefs.records) != 0 {
		t.Errorf("store still holds %d records after retraction", len(prefs.records))
	}
}

func TestBareRetractionWhileConfirmingTargetsPending(t *testing.T) {
	gen := &scriptedGen{script: []genStep{{text: hikingResponse}}}
	prefs := &stubPrefs{}
	c := newTestController(gen, prefs, Config{})

	ctx := context.Background()
	if _, err := c.HandleTurn(ctx, "I love hiking."); err != nil {
		t.Fatal(err)
	}
	if c.Phase() != types.PhaseConfirming {
		t.Fatalf("setup: phase = %s", c.Phase())
	}
	reply, err := c.HandleTurn(ctx, "That's no longer true.")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(reply, "forgotten") {
		t.Errorf("retraction reply = %q", reply)
	}
	if len(prefs.records) != 0 {
		t.Errorf("record under confirmation not retracted, %d remain", len(prefs.records))
	}
}

func TestRetractionAgainstEmptyStoreStaysPolite(t *testing.T) {
	gen := &scriptedGen{}
	c := newTestController(gen, &stubPrefs{}, Config{})

	reply, err := c.HandleTurn(context.Background(), "Forget that I like window seats.")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(reply, "understood") {
		t.Errorf("empty-store retraction reply = %q", reply)
	}
}

func TestGreetingIsStable(t *testing.T) {
	c := newTestController(&scriptedGen{}, &stubPrefs{}, Config{})
	if c.Greeting() == "" {
		t.Error("empty greeting")
	}
	if c.Phase() != types.PhaseGreeting {
		t.Errorf("phase before first turn = %s", c.Phase())
	}
}
