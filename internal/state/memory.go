// Package state holds per-conversation routing state in memory.
package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"triage-bot/internal/domain"
)

const DefaultDedupRetention = 5 * time.Minute

// MemoryStore keeps conversations and the dedup ledger for the lifetime of
// the process. Conversation entries are never evicted.
type MemoryStore struct {
	retention time.Duration

	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	// dedup maps a message identifier to the time its entry expires.
	dedup map[string]time.Time
}

// NewMemoryStore creates an empty store. A non-positive retention falls back
// to DefaultDedupRetention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultDedupRetention
	}
	return &MemoryStore{
		retention:     retention,
		conversations: make(map[string]*domain.Conversation),
		dedup:         make(map[string]time.Time),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Conversation, error) {
	if err := validateID(id); err != nil {
		return domain.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.conversationLocked(id), nil
}

// EnterHandoff switches the conversation to human handoff and flags it for
// follow-up. Re-entering refreshes the timestamp.
func (s *MemoryStore) EnterHandoff(_ context.Context, id string, now time.Time) error {
	if err := validateID(id); err != nil {
		return err
	}
	if now.IsZero() {
		return errors.New("state: handoff time must not be zero")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conversationLocked(id)
	c.Mode = domain.ModeHumanHandoff
	c.HandoffEnteredAt = now
	c.FlaggedForFollowUp = true
	return nil
}

// ExitHandoff returns the conversation to normal mode and clears the flag.
func (s *MemoryStore) ExitHandoff(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conversationLocked(id)
	c.Mode = domain.ModeNormal
	c.HandoffEnteredAt = time.Time{}
	c.FlaggedForFollowUp = false
	return nil
}

func (s *MemoryStore) IsFlagged(_ context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	return ok && c.FlaggedForFollowUp, nil
}

// MarkDedup records messageID until now plus the retention window. Expired
// entries are pruned on the way.
func (s *MemoryStore) MarkDedup(_ context.Context, messageID string, now time.Time) error {
	if err := validateID(messageID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, expiresAt := range s.dedup {
		if !now.Before(expiresAt) {
			delete(s.dedup, id)
		}
	}
	s.dedup[messageID] = now.Add(s.retention)
	return nil
}

func (s *MemoryStore) IsDuplicate(_ context.Context, messageID string, now time.Time) (bool, error) {
	if err := validateID(messageID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.dedup[messageID]
	if !ok {
		return false, nil
	}
	if !now.Before(expiresAt) {
		delete(s.dedup, messageID)
		return false, nil
	}
	return true, nil
}

// ExpireDedup drops messageID from the ledger regardless of its expiry.
func (s *MemoryStore) ExpireDedup(_ context.Context, messageID string) error {
	if err := validateID(messageID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dedup, messageID)
	return nil
}

func (s *MemoryStore) conversationLocked(id string) *domain.Conversation {
	c, ok := s.conversations[id]
	if !ok {
		c = &domain.Conversation{ID: id, Mode: domain.ModeNormal}
		s.conversations[id] = c
	}
	return c
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("state: identifier must not be empty")
	}
	return nil
}
