package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/penchant/internal/llm"
	"github.com/scrypster/penchant/pkg/types"
)

// Extraction generation defaults. Extraction wants determinism, so the
// temperature stays at zero and the token budget is small.
const (
	defaultMaxTokens   = 400
	defaultTemperature = 0.0
)

// Extractor turns one conversational turn (plus short history) into zero or
// more preference candidates via the generation gateway.
type Extractor struct {
	gen  llm.TextGenerator
	opts llm.GenerateOptions
}

// New creates an extractor backed by the given text generation gateway.
func New(gen llm.TextGenerator) *Extractor {
	return &Extractor{
		gen: gen,
		opts: llm.GenerateOptions{
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		},
	}
}

// Extract runs LLM-backed extraction over the turn and its rolling window.
//
// Failure semantics: a gateway timeout or outage is returned to the caller
// (retryable per llm.IsRetryable) so the controller can decide to retry the
// turn once. An unparseable response is NOT an error: it is logged and
// yields zero candidates, because extraction failure is non-fatal for the
// dialogue.
func (e *Extractor) Extract(ctx context.Context, turn types.Turn, history []types.Turn) ([]types.Candidate, error) {
	prompt := ExtractionPrompt(turn, history)

	raw, err := e.gen.Generate(ctx, prompt, e.opts)
	if err != nil {
		return nil, fmt.Errorf("extraction generate: %w", err)
	}

	candidates, err := ParseCandidateResponse(raw)
	if err != nil {
		var pf *ParseFailure
		if errors.As(err, &pf) {
			log.Printf("extract: discarding unparseable response (%v): %.200q", pf.Err, pf.Raw)
			return nil, nil
		}
		return nil, err
	}

	for i := range candidates {
		candidates[i].TurnID = turn.ID
	}
	return candidates, nil
}

// ExtractDegraded is the no-gateway fallback: deterministic regex patterns
// over the turn text alone. Used after a gateway failure has already been
// retried once.
func (e *Extractor) ExtractDegraded(turn types.Turn) []types.Candidate {
	return PatternCandidates(turn)
}
