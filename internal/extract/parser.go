package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrypster/penchant/pkg/types"
)

// ParseFailure reports that a gateway response could not be decoded into
// candidates. It carries the raw text for logging; extraction treats it as
// "zero candidates", never as a fatal error.
type ParseFailure struct {
	Raw string
	Err error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("unparseable extraction response: %v", e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// candidateResponse is a single extracted preference as emitted by the LLM.
type candidateResponse struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// candidateListResponse is the complete extraction response. An empty
// Preferences array is the explicit "no preference detected" marker.
type candidateListResponse struct {
	Preferences []candidateResponse `json:"preferences"`
}

// extractJSON extracts the first complete JSON object from a string that may
// contain extra text. LLMs add explanations and markdown fences around JSON
// despite instructions, so the parser peels those off before decoding.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // No JSON found, return as-is and let the decoder fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // No complete JSON object found
}

// ParseCandidateResponse decodes an extraction response into normalized
// candidates. Malformed JSON yields a *ParseFailure; within a well-formed
// response, confidence values are clamped to [0,1], unknown categories map
// to "uncategorized", and entries with empty text are dropped.
func ParseCandidateResponse(raw string) ([]types.Candidate, error) {
	cleanJSON := extractJSON(raw)

	var response candidateListResponse
	if err := json.Unmarshal([]byte(cleanJSON), &response); err != nil {
		return nil, &ParseFailure{Raw: raw, Err: err}
	}

	candidates := make([]types.Candidate, 0, len(response.Preferences))
	for _, p := range response.Preferences {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		cand := types.Candidate{
			Text:       text,
			Category:   p.Category,
			Confidence: p.Confidence,
		}
		cand.Normalize()
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
