package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/scrypster/penchant/internal/llm"
	"github.com/scrypster/penchant/pkg/types"
)

// stubGenerator returns a canned response or error and records the prompts
// it received.
type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string { return "stub" }

func userTurn(id, text string) types.Turn {
	return types.Turn{ID: id, Speaker: types.SpeakerUser, Text: text, Timestamp: time.Now()}
}

func TestExtractAssignsTurnID(t *testing.T) {
	gen := &stubGenerator{response: `{"preferences": [{"text": "prefers window seats", "category": "travel", "confidence": 0.9}]}`}
	e := New(gen)

	candidates, err := e.Extract(context.Background(), userTurn("turn-7", "I really love window seats when I fly"), nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].TurnID != "turn-7" {
		t.Errorf("expected turn id turn-7, got %q", candidates[0].TurnID)
	}
	if candidates[0].Category != "travel" || candidates[0].Confidence != 0.9 {
		t.Errorf("candidate fields wrong: %+v", candidates[0])
	}
}

func TestExtractIncludesHistoryInPrompt(t *testing.T) {
	gen := &stubGenerator{response: `{"preferences": []}`}
	e := New(gen)

	history := []types.Turn{
		{Speaker: types.SpeakerAssistant, Text: "What's a typical day like for you?"},
		{Speaker: types.SpeakerUser, Text: "Pretty quiet, mostly reading."},
	}
	if _, err := e.Extract(context.Background(), userTurn("t1", "I usually read fiction before bed"), history); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("expected exactly one gateway call, got %d", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	for _, fragment := range []string{
		"Pretty quiet, mostly reading.",
		"I usually read fiction before bed",
		`{"preferences": []}`,
	} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing fragment %q", fragment)
		}
	}
}

func TestExtractGatewayErrorIsRetryable(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("ollama: %w", llm.ErrGatewayTimeout)}
	e := New(gen)

	candidates, err := e.Extract(context.Background(), userTurn("t1", "hello"), nil)
	if err == nil {
		t.Fatal("expected a gateway error")
	}
	if !llm.IsRetryable(err) {
		t.Errorf("gateway errors must stay retryable through wrapping, got %v", err)
	}
	if candidates != nil {
		t.Errorf("expected nil candidates on gateway error, got %v", candidates)
	}
}

func TestExtractMalformedResponseYieldsZeroCandidates(t *testing.T) {
	gen := &stubGenerator{response: "no JSON here, sorry"}
	e := New(gen)

	candidates, err := e.Extract(context.Background(), userTurn("t1", "hello"), nil)
	if err != nil {
		t.Fatalf("parse failures must not surface as errors, got %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected zero candidates, got %v", candidates)
	}
}

func TestExtractDegradedUsesPatterns(t *testing.T) {
	e := New(&stubGenerator{})

	candidates := e.ExtractDegraded(userTurn("t9", "I really love going for walks in the evening."))
	if len(candidates) != 1 {
		t.Fatalf("expected 1 pattern candidate, got %d", len(candidates))
	}
	if candidates[0].Text != "going for walks in the evening" {
		t.Errorf("unexpected pattern capture: %q", candidates[0].Text)
	}
	if candidates[0].TurnID != "t9" {
		t.Errorf("pattern candidate missing turn id: %+v", candidates[0])
	}
	if candidates[0].Category != types.CategoryUncategorized {
		t.Errorf("pattern candidates must be uncategorized, got %q", candidates[0].Category)
	}
}

