package hmr

import (
	"sync"
)

// SessionTracker holds the live session of every connected client.
type SessionTracker struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions: make(map[string]*Session),
	}
}

func (t *SessionTracker) Add(sess *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sess.ID] = sess
}

// Remove closes and forgets the session with id.
func (t *SessionTracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sess, ok := t.sessions[id]; ok {
		sess.Close()
		delete(t.sessions, id)
	}
}

func (t *SessionTracker) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[id]
	return sess, ok
}

func (t *SessionTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Clear closes every session.
func (t *SessionTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sess := range t.sessions {
		sess.Close()
	}
	t.sessions = make(map[string]*Session)
}
