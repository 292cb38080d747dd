package extract

import (
	"errors"
	"testing"

	"github.com/scrypster/penchant/pkg/types"
)

func TestParseCandidateResponse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCount int
		wantFail  bool
	}{
		{
			name:      "clean single candidate",
			raw:       `{"preferences": [{"text": "prefers window seats", "category": "travel", "confidence": 0.9}]}`,
			wantCount: 1,
		},
		{
			name:      "explicit no-preference marker",
			raw:       `{"preferences": []}`,
			wantCount: 0,
		},
		{
			name:      "markdown fenced JSON",
			raw:       "```json\n{\"preferences\": [{\"text\": \"enjoys sushi\", \"category\": \"food\", \"confidence\": 0.8}]}\n```",
			wantCount: 1,
		},
		{
			name:      "explanation text around JSON",
			raw:       `Sure! Here is the extraction: {"preferences": [{"text": "enjoys sushi", "category": "food", "confidence": 0.8}]} Let me know if you need more.`,
			wantCount: 1,
		},
		{
			name:      "multiple candidates",
			raw:       `{"preferences": [{"text": "a pref", "category": "food", "confidence": 0.7}, {"text": "b pref", "category": "travel", "confidence": 0.6}]}`,
			wantCount: 2,
		},
		{
			name:      "entries with empty text are dropped",
			raw:       `{"preferences": [{"text": "  ", "category": "food", "confidence": 0.7}, {"text": "kept", "category": "food", "confidence": 0.7}]}`,
			wantCount: 1,
		},
		{
			name:     "not JSON at all",
			raw:      "I could not find any preferences in that message.",
			wantFail: true,
		},
		{
			name:     "truncated JSON",
			raw:      `{"preferences": [{"text": "prefers win`,
			wantFail: true,
		},
		{
			name:     "empty response",
			raw:      "",
			wantFail: true,
		},
		{
			name:      "wrong shape decodes to zero candidates",
			raw:       `{"entities": [{"name": "sushi"}]}`,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, err := ParseCandidateResponse(tt.raw)
			if tt.wantFail {
				var pf *ParseFailure
				if !errors.As(err, &pf) {
					t.Fatalf("expected *ParseFailure, got %v", err)
				}
				if pf.Raw != tt.raw {
					t.Error("ParseFailure must carry the raw response")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(candidates) != tt.wantCount {
				t.Errorf("expected %d candidates, got %d", tt.wantCount, len(candidates))
			}
		})
	}
}

func TestParseCandidateResponseNormalizes(t *testing.T) {
	raw := `{"preferences": [{"text": "prefers aisle seats", "category": "Seating", "confidence": 1.8}]}`

	candidates, err := ParseCandidateResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Category != types.CategoryUncategorized {
		t.Errorf("unknown category should map to uncategorized, got %q", candidates[0].Category)
	}
	if candidates[0].Confidence != 1.0 {
		t.Errorf("confidence should clamp to 1.0, got %f", candidates[0].Confidence)
	}

	raw = `{"preferences": [{"text": "x statement", "category": "food", "confidence": -0.5}]}`
	candidates, err = ParseCandidateResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].Confidence != 0.0 {
		t.Errorf("confidence should clamp to 0.0, got %f", candidates[0].Confidence)
	}
}

func TestExtractJSONHandlesNestedBraces(t *testing.T) {
	raw := `noise {"preferences": [{"text": "likes {weird} text", "category": "food", "confidence": 0.5}]} trailing`
	candidates, err := ParseCandidateResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Text != "likes {weird} text" {
		t.Fatalf("expected brace-containing text to survive, got %v", candidates)
	}
}
