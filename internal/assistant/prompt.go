package assistant

import (
	"strings"

	"triage-bot/internal/domain"
)

// FallbackAnswer replaces a blank completion so the user never receives an
// empty message.
const FallbackAnswer = "Sorry, I couldn't generate a reply just now."

func buildClassifierMessages(text string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: classifierPrompt()},
		{Role: "user", Content: text},
	}
}

func buildAnswerMessages(text string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: personaPrompt()},
		{Role: "user", Content: text},
	}
}

func classifierPrompt() string {
	return strings.Join([]string{
		"You are a message classifier for a property assistant.",
		"Classify the user's message into one of these categories:",
		`- "assist" (user is asking a question about property, lettings, viewings, rentals, Nest services)`,
		`- "chit-chat" (casual conversation or greetings)`,
		`- "human" (asking for a real person)`,
		"Return ONLY one of these words.",
	}, "\n")
}

func personaPrompt() string {
	return strings.Join([]string{
		"You are Nest Assistant, a warm, friendly, and knowledgeable virtual assistant for Nest Homes & Interiors in Cardiff.",
		"Always answer politely, clearly, and in a professional yet approachable way about properties, lettings, and general enquiries.",
		"Keep answers concise but helpful.",
	}, "\n")
}

func normalizeAnswer(raw string) string {
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return FallbackAnswer
	}
	return answer
}
