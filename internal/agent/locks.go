package agent

import "sync"

// TurnLocks enforces at most one in-flight turn per conversation id. It is
// an explicit keyed registry passed through construction rather than ambient
// package state, so each process or test builds its own instance.
type TurnLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewTurnLocks creates an empty lock registry.
func NewTurnLocks() *TurnLocks {
	return &TurnLocks{held: make(map[string]struct{})}
}

// TryAcquire takes the lock for the conversation if it is free. It never
// blocks; a false return means another turn holds it.
func (l *TurnLocks) TryAcquire(conversationID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[conversationID]; taken {
		return false
	}
	l.held[conversationID] = struct{}{}
	return true
}

// Release frees the lock. Releasing an unheld lock is a no-op so cleanup
// paths can call it unconditionally.
func (l *TurnLocks) Release(conversationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, conversationID)
}

// Held reports whether the conversation currently has a turn in flight.
func (l *TurnLocks) Held(conversationID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, taken := l.held[conversationID]
	return taken
}
