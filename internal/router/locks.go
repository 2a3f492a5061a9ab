package router

import (
	"context"
	"sync"
)

// conversationSemaphore serializes routing for one conversation.
type conversationSemaphore struct {
	ch chan struct{}
}

func newConversationSemaphore() *conversationSemaphore {
	s := &conversationSemaphore{ch: make(chan struct{}, 1)}
	s.ch <- struct{}{}
	return s
}

// conversationLocks hands out one semaphore per conversation. Entries are
// kept for the lifetime of the process, like the conversations themselves.
type conversationLocks struct {
	sems sync.Map // conversation ID -> *conversationSemaphore
}

func (l *conversationLocks) acquire(ctx context.Context, id string) bool {
	val, _ := l.sems.LoadOrStore(id, newConversationSemaphore())
	sem := val.(*conversationSemaphore)
	select {
	case <-sem.ch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *conversationLocks) release(id string) {
	if val, ok := l.sems.Load(id); ok {
		val.(*conversationSemaphore).ch <- struct{}{}
	}
}
