package router

import (
	"strings"
	"time"

	"triage-bot/internal/domain"
)

// DefaultHandoffTimeout is how long the bot stays silent after a human
// takes over, unless the user asks for it back.
const DefaultHandoffTimeout = 4 * time.Hour

var resumePhrases = []string{"resume", "back to bot"}

type handoffTransition int

const (
	// transitionDefer keeps the conversation with the human.
	transitionDefer handoffTransition = iota
	// transitionResume ends handoff on the user's request; the message is
	// answered with the resume notice only.
	transitionResume
	// transitionTimeout ends handoff after the timeout; the same message
	// re-enters the pipeline as a fresh one.
	transitionTimeout
)

func (t handoffTransition) String() string {
	switch t {
	case transitionResume:
		return "resume"
	case transitionTimeout:
		return "timeout"
	default:
		return "defer"
	}
}

// evaluateHandoff decides what a message does to a conversation that is in
// human handoff. It does not touch state.
func evaluateHandoff(conv domain.Conversation, text string, now time.Time, timeout time.Duration) handoffTransition {
	if wantsResume(text) {
		return transitionResume
	}
	if now.Sub(conv.HandoffEnteredAt) >= timeout {
		return transitionTimeout
	}
	return transitionDefer
}

func wantsResume(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range resumePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
