// Package extract turns conversational turns into structured preference
// candidates. It builds strict JSON-only prompts for the generation gateway,
// parses the responses defensively, and carries a deterministic regex
// fallback for when the gateway is degraded.
package extract

import (
	"fmt"
	"strings"

	"github.com/scrypster/penchant/pkg/types"
)

// categoryDescriptions maps preference categories to brief descriptions for
// prompts.
var categoryDescriptions = map[string]string{
	types.CategoryTravel:        "Transport, destinations, seating, accommodation",
	types.CategoryFood:          "Diet, cuisine, drinks, restaurants",
	types.CategorySchedule:      "Routines, timing, sleep, availability",
	types.CategoryEntertainment: "Books, movies, music, games",
	types.CategoryWork:          "Work style, environment, collaboration",
	types.CategoryHealth:        "Exercise, wellness, medical",
	types.CategorySocial:        "Company, gatherings, communication style",
	types.CategoryHobby:         "Pastimes, crafts, sports, collections",
}

// ExtractionPrompt generates a strict JSON-only prompt for preference
// extraction from the latest user turn, with the rolling window of recent
// turns as context. The prompt demands an object with a "preferences" array;
// an empty array is the explicit "no preference detected" marker.
func ExtractionPrompt(turn types.Turn, history []types.Turn) string {
	var sb strings.Builder

	sb.WriteString(`TASK: Extract user preferences from the latest message.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks. NO explanations.

A preference is anything the user likes, dislikes, values, habitually does,
wishes for, or would choose over an alternative. Capture subtle ones too.
Restate each preference as a short third-person statement, e.g.
"prefers window seats" or "dislikes getting up early".

CATEGORIES (use exactly one per preference):
`)
	for _, cat := range types.ValidCategories {
		desc, ok := categoryDescriptions[cat]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", cat, desc)
	}
	sb.WriteString(`- uncategorized: Anything that fits none of the above

REQUIRED JSON STRUCTURE:
{"preferences": [{"text": "prefers window seats", "category": "travel", "confidence": 0.9}]}

If the latest message contains no preference, respond with exactly:
{"preferences": []}

RULES:
- confidence is a number between 0.0 and 1.0
- one entry per distinct preference, no duplicates
- do not invent preferences that are not grounded in the user's words

`)

	if len(history) > 0 {
		sb.WriteString("RECENT CONVERSATION:\n")
		for _, h := range history {
			fmt.Fprintf(&sb, "%s: %s\n", h.Speaker, h.Text)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "LATEST USER MESSAGE:\n%s\n", turn.Text)
	return sb.String()
}
