package services

import "sync"

// ConversationLocks serialises work on the same conversation id.
// Entries are reference counted and removed once no caller holds or waits on them.
type ConversationLocks struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// NewConversationLocks creates an empty lock table
func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{locks: make(map[string]*conversationLock)}
}

// Lock blocks until id is free and returns the matching unlock func
func (l *ConversationLocks) Lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &conversationLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of ids currently held or awaited
func (l *ConversationLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
