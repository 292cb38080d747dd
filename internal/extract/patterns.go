package extract

import (
	"regexp"
	"strings"

	"github.com/scrypster/penchant/pkg/types"
)

// patternConfidence is the fixed confidence assigned to regex-matched
// preferences. Pattern matches are shallower evidence than LLM extraction,
// so they sit below the typical LLM confidence range.
const patternConfidence = 0.5

// minPatternMatchLen filters out fragments too short to be a meaningful
// preference statement.
const minPatternMatchLen = 5

// preferencePatterns match common first-person preference phrasings. Each
// pattern's first capture group is the preference body.
var preferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I (?:really )?(?:like|love|enjoy|prefer|adore|favor) (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)I'm (?:a big fan of|passionate about|interested in) (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)I (?:hate|dislike|can't stand|despise) (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)I (?:wish|want|would like|hope) (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)I (?:always|usually|often|never) (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)I would rather (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)I don't like (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)my favorite \w+ (?:is|are) (.+?)(?:\.|!|\n|$)`),
	regexp.MustCompile(`(?i)it (?:bothers|annoys) me when (.+?)(?:\.|!|\n|$)`),
}

// PatternCandidates extracts preference candidates from a turn using the
// deterministic regex patterns. It is the degraded-mode fallback used when
// the generation gateway is unavailable: obvious statements still get
// captured, categorized as "uncategorized" at reduced confidence.
func PatternCandidates(turn types.Turn) []types.Candidate {
	var candidates []types.Candidate
	seen := make(map[string]bool)

	for _, pattern := range preferencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(turn.Text, -1) {
			if len(match) < 2 {
				continue
			}
			body := strings.TrimSpace(match[1])
			if len(body) < minPatternMatchLen || seen[strings.ToLower(body)] {
				continue
			}
			seen[strings.ToLower(body)] = true
			candidates = append(candidates, types.Candidate{
				Text:       body,
				Category:   types.CategoryUncategorized,
				Confidence: patternConfidence,
				TurnID:     turn.ID,
			})
		}
	}
	return candidates
}
