// Package router decides, for each inbound chat message, whether to answer
// automatically, hand the conversation to a human, or stay silent.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"triage-bot/internal/domain"
	"triage-bot/internal/relevance"
	"triage-bot/internal/responder"
)

// StateStore holds per-conversation routing state and the dedup ledger.
// *state.MemoryStore satisfies this interface.
type StateStore interface {
	Get(ctx context.Context, id string) (domain.Conversation, error)
	EnterHandoff(ctx context.Context, id string, now time.Time) error
	ExitHandoff(ctx context.Context, id string) error
	IsFlagged(ctx context.Context, id string) (bool, error)
	MarkDedup(ctx context.Context, messageID string, now time.Time) error
	IsDuplicate(ctx context.Context, messageID string, now time.Time) (bool, error)
	ExpireDedup(ctx context.Context, messageID string) error
}

type IntentClassifier interface {
	Classify(ctx context.Context, text string) domain.Intent
}

type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// Replier sends replies to a conversation. *responder.Responder satisfies it.
type Replier interface {
	Send(ctx context.Context, recipientID, text string) error
	SendAnswer(ctx context.Context, recipientID, answer string) error
}

// Journal records handoff episodes and answers for the human team.
type Journal interface {
	RecordEvent(ctx context.Context, ev domain.FollowUpEvent) error
}

type Config struct {
	// IgnoredSenders are dropped before any other check.
	IgnoredSenders []string
	HandoffTimeout time.Duration
	// Journal is optional.
	Journal Journal
	Logger  *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// Watermark defaults to Now() at construction, truncated to the second.
	Watermark time.Time
	// MaxAge, when positive, replaces the watermark gate: a message older
	// than MaxAge at the time it is handled is dropped. Used when the
	// process is started by the delivery it must answer.
	MaxAge time.Duration
}

type Router struct {
	state      StateStore
	classifier IntentClassifier
	generator  Generator
	replies    Replier
	journal    Journal
	logger     *slog.Logger
	now        func() time.Time

	ignored        map[string]struct{}
	handoffTimeout time.Duration
	watermark      time.Time
	maxAge         time.Duration
	locks          conversationLocks
}

func New(s StateStore, c IntentClassifier, g Generator, r Replier, cfg Config) (*Router, error) {
	if s == nil {
		return nil, errors.New("router: state store must not be nil")
	}
	if c == nil {
		return nil, errors.New("router: classifier must not be nil")
	}
	if g == nil {
		return nil, errors.New("router: generator must not be nil")
	}
	if r == nil {
		return nil, errors.New("router: replier must not be nil")
	}
	rt := &Router{
		state:          s,
		classifier:     c,
		generator:      g,
		replies:        r,
		journal:        cfg.Journal,
		logger:         cfg.Logger,
		now:            cfg.Now,
		ignored:        make(map[string]struct{}, len(cfg.IgnoredSenders)),
		handoffTimeout: cfg.HandoffTimeout,
		watermark:      cfg.Watermark,
		maxAge:         cfg.MaxAge,
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if rt.now == nil {
		rt.now = time.Now
	}
	if rt.handoffTimeout <= 0 {
		rt.handoffTimeout = DefaultHandoffTimeout
	}
	if rt.watermark.IsZero() {
		rt.watermark = rt.now().Truncate(time.Second)
	}
	for _, id := range cfg.IgnoredSenders {
		if id = strings.TrimSpace(id); id != "" {
			rt.ignored[id] = struct{}{}
		}
	}
	return rt, nil
}

// Watermark is the instant before which inbound messages are dropped. It is
// not consulted when Config.MaxAge is set.
func (r *Router) Watermark() time.Time {
	return r.watermark
}

// Handle routes one inbound message. It never panics and never returns an
// error: failures are logged and answered with a generic apology. State
// changes made before a failure stay in effect.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) (outcome Outcome) {
	logger := r.logger.With(
		"trace_id", newTraceID(),
		"sender", msg.SenderID,
		"message_id", msg.MessageID,
	)
	defer func() {
		if p := recover(); p != nil {
			r.fail(ctx, logger, msg, newError(ErrorInternal, "panic", fmt.Errorf("%v", p)))
			outcome = OutcomeFailed
		}
	}()

	outcome, err := r.route(ctx, logger, msg)
	if err != nil {
		r.fail(ctx, logger, msg, asError(err))
		return OutcomeFailed
	}
	logger.Info("message routed", "outcome", outcome)
	return outcome
}

func (r *Router) route(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage) (Outcome, error) {
	if _, ok := r.ignored[msg.SenderID]; ok {
		return OutcomeIgnored, nil
	}
	if msg.FromSelf {
		return OutcomeSelf, nil
	}
	if r.isStale(msg.Timestamp) {
		return OutcomeStale, nil
	}
	if !relevance.IsRelevant(msg.Text) {
		logger.Debug("skipping trivial message")
		return OutcomeIrrelevant, nil
	}

	if !r.locks.acquire(ctx, msg.SenderID) {
		logger.Warn("gave up waiting for conversation", "err", ctx.Err())
		return OutcomeCancelled, nil
	}
	defer r.locks.release(msg.SenderID)

	conv, err := r.state.Get(ctx, msg.SenderID)
	if err != nil {
		return "", newError(ErrorState, "state_read_error", err)
	}
	if conv.InHandoff() {
		outcome, next, err := r.applyHandoff(ctx, logger, msg, conv)
		if err != nil || !next {
			return outcome, err
		}
	}

	intent := r.classifier.Classify(ctx, msg.Text)
	if ctx.Err() != nil {
		// The classifier fails open, so its answer is meaningless once the
		// delivery is gone. Nothing has been committed yet.
		logger.Warn("delivery cancelled during classification", "err", ctx.Err())
		return OutcomeCancelled, nil
	}
	switch intent {
	case domain.IntentHuman:
		return r.enterHandoff(ctx, logger, msg)
	case domain.IntentChitChat:
		return OutcomeChitChat, nil
	case domain.IntentAssist:
	default:
		logger.Info("unrecognized intent", "intent", intent)
		return OutcomeUnknown, nil
	}

	flagged, err := r.state.IsFlagged(ctx, msg.SenderID)
	if err != nil {
		return "", newError(ErrorState, "state_read_error", err)
	}
	if flagged {
		return OutcomeFlagged, nil
	}

	dup, err := r.state.IsDuplicate(ctx, msg.MessageID, r.now())
	if err != nil {
		return "", newError(ErrorState, "state_read_error", err)
	}
	if dup {
		return OutcomeDuplicate, nil
	}
	return r.answer(ctx, logger, msg)
}

func (r *Router) isStale(ts time.Time) bool {
	if r.maxAge > 0 {
		return r.now().Sub(ts) > r.maxAge
	}
	return ts.Before(r.watermark)
}

// applyHandoff runs the handoff transition for a conversation a human owns.
// next reports whether the message continues to classification.
func (r *Router) applyHandoff(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage, conv domain.Conversation) (outcome Outcome, next bool, err error) {
	transition := evaluateHandoff(conv, msg.Text, r.now(), r.handoffTimeout)
	logger.Info("conversation in handoff", "transition", transition, "entered_at", conv.HandoffEnteredAt)

	switch transition {
	case transitionResume:
		if err := r.state.ExitHandoff(ctx, msg.SenderID); err != nil {
			return "", false, newError(ErrorState, "state_write_error", err)
		}
		r.record(ctx, logger, msg, domain.FollowUpHandoffResumed, "")
		if err := r.replies.Send(ctx, msg.SenderID, responder.ResumeNotice); err != nil {
			return "", false, newError(ErrorTransport, "send_failed", err)
		}
		return OutcomeResumed, false, nil
	case transitionTimeout:
		if err := r.state.ExitHandoff(ctx, msg.SenderID); err != nil {
			return "", false, newError(ErrorState, "state_write_error", err)
		}
		r.record(ctx, logger, msg, domain.FollowUpHandoffTimedOut, "")
		if err := r.replies.Send(ctx, msg.SenderID, responder.CheckInNotice); err != nil {
			return "", false, newError(ErrorTransport, "send_failed", err)
		}
		return "", true, nil
	default:
		return OutcomeDeferred, false, nil
	}
}

func (r *Router) enterHandoff(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage) (Outcome, error) {
	if err := r.state.EnterHandoff(ctx, msg.SenderID, r.now()); err != nil {
		return "", newError(ErrorState, "state_write_error", err)
	}
	logger.Info("conversation flagged for human follow-up")
	r.record(ctx, logger, msg, domain.FollowUpHandoffRequested, "")
	if err := r.replies.Send(ctx, msg.SenderID, responder.HandoffNotice); err != nil {
		return "", newError(ErrorTransport, "send_failed", err)
	}
	return OutcomeHandoff, nil
}

// answer commits to an AI reply. From here on the work is not cancelled by
// the inbound delivery's context.
func (r *Router) answer(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	if err := r.state.MarkDedup(ctx, msg.MessageID, r.now()); err != nil {
		return "", newError(ErrorState, "state_write_error", err)
	}
	answer, err := r.generator.Generate(ctx, msg.Text)
	if err != nil {
		return "", generationError(err)
	}
	if err := r.replies.SendAnswer(ctx, msg.SenderID, answer); err != nil {
		return "", newError(ErrorTransport, "send_failed", err)
	}
	r.record(ctx, logger, msg, domain.FollowUpAnswered, answer)
	return OutcomeAnswered, nil
}

func (r *Router) fail(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage, e *Error) {
	logger.Error("error handling message", "code", e.Code, "reason", e.Reason, "err", e.Err)
	if strings.TrimSpace(msg.SenderID) == "" {
		return
	}
	if err := r.replies.Send(context.WithoutCancel(ctx), msg.SenderID, responder.Apology); err != nil {
		logger.Error("failed to send apology", "err", err)
	}
}

func (r *Router) record(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage, kind domain.FollowUpKind, answer string) {
	if r.journal == nil {
		return
	}
	err := r.journal.RecordEvent(ctx, domain.FollowUpEvent{
		ConversationID: msg.SenderID,
		Kind:           kind,
		MessageID:      msg.MessageID,
		Text:           msg.Text,
		Answer:         answer,
		At:             r.now(),
	})
	if err != nil {
		logger.Warn("failed to record follow-up event", "kind", kind, "err", err)
	}
}

var newTraceID = func() string {
	return uuid.NewString()
}
