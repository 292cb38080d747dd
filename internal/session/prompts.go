package session

import (
	"fmt"
	"strings"

	"github.com/scrypster/penchant/pkg/types"
)

// storyPrompts are open-ended questions used while probing. They invite
// stories rather than asking for preferences directly, since preferences
// surface more naturally in narrative answers.
var storyPrompts = []string{
	"What's a favorite memory from your childhood?",
	"Tell me about a place you've visited that left an impression on you.",
	"What's something you're looking forward to in the near future?",
	"What's a hobby or activity that brings you joy?",
	"Tell me about a book, movie, or show that you enjoyed recently.",
	"What's a typical day like for you?",
	"What's something you're passionate about?",
	"If you could travel anywhere, where would you go and why?",
	"What's your ideal way to spend a free day?",
}

// escalationPrompts are category-specific questions used after two
// consecutive turns without an extracted preference, to move the
// conversation off a stall. Ordered from broad to narrow.
var escalationPrompts = []string{
	"Tell me a bit about your daily routines — anything you always do a certain way?",
	"Do you have any dietary preferences or foods you particularly enjoy or avoid?",
	"How do you like to travel — any strong feelings about flights, trains, or hotels?",
	"What do you usually watch, read, or listen to when you want to unwind?",
	"Are you more of a morning person or a night owl?",
}

const (
	greetingMessage = "Hi! I'd love to get to know you a little. Tell me about yourself — what do you enjoy?"

	// degradedMessage is the user-visible text for a gateway failure. The
	// failure itself is never exposed.
	degradedMessage = "I didn't catch a preference there — tell me more."
)

// confirmationPrompt asks a yes/no question naming the extracted preference.
func confirmationPrompt(rec *types.PreferenceRecord) string {
	return fmt.Sprintf("Just to check I understood — you %s. Did I get that right?", rec.Text)
}

// closingSummary renders the session's harvest as a farewell message.
func closingSummary(records []*types.PreferenceRecord) string {
	if len(records) == 0 {
		return "Thanks for chatting! I didn't pick up any preferences this time, but I enjoyed the conversation."
	}

	var sb strings.Builder
	sb.WriteString("Thanks for chatting! Here's what I learned about you:\n")
	for _, rec := range records {
		fmt.Fprintf(&sb, "- %s\n", rec.Text)
	}
	sb.WriteString("I'll remember these for next time.")
	return sb.String()
}

// FormatForPrompt renders known preferences as a bulleted block suitable for
// inclusion in a downstream personalization prompt.
func FormatForPrompt(records []*types.PreferenceRecord) string {
	if len(records) == 0 {
		return "No preferences have been learned yet."
	}
	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "- %s\n", rec.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
