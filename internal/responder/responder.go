// Package responder formats outgoing replies and hands them to the transport.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fixed reply texts.
const (
	HandoffNotice  = "📩 Your Request Is Noted 📩 Our team will contact you soon. Only reply if it’s urgent — replying unnecessarily can slow things down. If you want me back sooner, just type 'resume'."
	ResumeNotice   = "Nest Assistant is back! How can I help you today?"
	CheckInNotice  = "Just checking in — I’m back if you still need help! How can I assist?"
	Apology        = "Sorry, I’m having trouble answering right now."
	EscalationNote = "_Need to speak to someone from Nest? Just reply with 'human' and we’ll connect you._"
)

// Sender is the transport's send capability.
type Sender interface {
	Send(ctx context.Context, recipientID, text string) error
}

type Responder struct {
	sender Sender
}

func New(s Sender) (*Responder, error) {
	if s == nil {
		return nil, errors.New("responder: sender must not be nil")
	}
	return &Responder{sender: s}, nil
}

// Send delivers text unchanged. Delivery is not retried.
func (r *Responder) Send(ctx context.Context, recipientID, text string) error {
	if strings.TrimSpace(recipientID) == "" {
		return errors.New("responder: recipient must not be empty")
	}
	if err := r.sender.Send(ctx, recipientID, text); err != nil {
		return fmt.Errorf("responder: send to %s: %w", recipientID, err)
	}
	return nil
}

// SendAnswer delivers a generated answer with the escalation footer.
func (r *Responder) SendAnswer(ctx context.Context, recipientID, answer string) error {
	return r.Send(ctx, recipientID, FormatAnswer(answer))
}

// FormatAnswer appends the escalation footer to answer.
func FormatAnswer(answer string) string {
	return answer + "\n\n" + EscalationNote
}
