package domain

import "time"

// InboundMessage is the transport-agnostic shape of a received chat message.
type InboundMessage struct {
	SenderID  string
	MessageID string
	Text      string
	Timestamp time.Time
	// FromSelf is set by the transport when the bot authored the message.
	FromSelf bool
}

// Intent is the closed classification of a message's purpose.
type Intent string

const (
	IntentAssist   Intent = "assist"
	IntentChitChat Intent = "chit-chat"
	IntentHuman    Intent = "human"
	// IntentUnknown marks a classifier answer outside the closed set.
	IntentUnknown Intent = "unknown"
)
