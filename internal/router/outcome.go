package router

// Outcome is the terminal decision taken for one inbound message.
type Outcome string

const (
	OutcomeIgnored    Outcome = "ignored_sender"
	OutcomeSelf       Outcome = "from_self"
	OutcomeStale      Outcome = "before_watermark"
	OutcomeIrrelevant Outcome = "irrelevant"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeDeferred   Outcome = "deferred_to_human"
	OutcomeResumed    Outcome = "resumed"
	OutcomeHandoff    Outcome = "handoff"
	OutcomeChitChat   Outcome = "chit_chat"
	OutcomeUnknown    Outcome = "unrecognized_intent"
	OutcomeFlagged    Outcome = "flagged_for_follow_up"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeAnswered   Outcome = "answered"
	OutcomeFailed     Outcome = "failed"
)

