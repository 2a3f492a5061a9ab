// Package intent normalizes the external classifier's answer into a closed
// set of intents.
//
// Failure policy: when the classifier is unreachable, errors, or returns a
// blank answer, Classify reports domain.IntentAssist. Failing open keeps a
// classification outage from silently dropping real questions; the cost is
// that chit-chat may be answered while the classifier is down.
package intent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"triage-bot/internal/domain"
)

// Capability is the external classification service.
type Capability interface {
	Classify(ctx context.Context, text string) (string, error)
}

type Classifier struct {
	capability Capability
	logger     *slog.Logger
}

func NewClassifier(c Capability, logger *slog.Logger) (*Classifier, error) {
	if c == nil {
		return nil, errors.New("intent: capability must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{capability: c, logger: logger}, nil
}

// Classify never fails; see the package documentation for the fallback rule.
func (c *Classifier) Classify(ctx context.Context, text string) domain.Intent {
	raw, err := c.capability.Classify(ctx, text)
	if err != nil {
		c.logger.Warn("classification failed, defaulting to assist", "err", err)
		return domain.IntentAssist
	}
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		c.logger.Warn("classification returned blank answer, defaulting to assist")
		return domain.IntentAssist
	}
	return Parse(normalized)
}

// Parse maps a normalized classifier word to an intent.
func Parse(word string) domain.Intent {
	switch domain.Intent(word) {
	case domain.IntentAssist, domain.IntentChitChat, domain.IntentHuman:
		return domain.Intent(word)
	default:
		return domain.IntentUnknown
	}
}
