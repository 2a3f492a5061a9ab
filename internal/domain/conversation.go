package domain

import "time"

// Mode is the routing mode of a conversation.
type Mode string

const (
	ModeNormal       Mode = "normal"
	ModeHumanHandoff Mode = "human-handoff"
)

// Conversation is the per-sender routing state. HandoffEnteredAt is non-zero
// exactly when Mode is ModeHumanHandoff.
type Conversation struct {
	ID                 string
	Mode               Mode
	HandoffEnteredAt   time.Time
	FlaggedForFollowUp bool
}

// InHandoff reports whether a human has taken over the conversation.
func (c Conversation) InHandoff() bool {
	return c.Mode == ModeHumanHandoff
}

// FollowUpKind names a journaled routing event.
type FollowUpKind string

const (
	FollowUpHandoffRequested FollowUpKind = "handoff_requested"
	FollowUpHandoffResumed   FollowUpKind = "handoff_resumed"
	FollowUpHandoffTimedOut  FollowUpKind = "handoff_timed_out"
	FollowUpAnswered         FollowUpKind = "answered"
)

// FollowUpEvent is a single journal entry the human team can review.
type FollowUpEvent struct {
	PK             string
	SK             string
	ConversationID string
	Kind           FollowUpKind
	MessageID      string
	Text           string
	Answer         string
	At             time.Time
	TTL            int64
}

// FollowUpSummary is the latest journaled state of a conversation.
type FollowUpSummary struct {
	ConversationID string
	LastKind       FollowUpKind
	LastMessageID  string
	LastActivity   time.Time
}

// AwaitingHuman reports whether the last event handed the conversation to a
// human and nothing has happened since.
func (s FollowUpSummary) AwaitingHuman() bool {
	return s.LastKind == FollowUpHandoffRequested
}
