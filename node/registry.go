package node

import "sync"

// Registry stores active sessions by station identifier.
// There is at most one session per station.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put registers the session and returns the one it replaced (if any).
// The caller is responsible for closing the previous session.
func (r *Registry) Put(id string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[id]
	r.sessions[id] = s

	if prev == s {
		return nil
	}

	return prev
}

// Remove deletes the entry only if it still points to the expected session
func (r *Registry) Remove(id string, expected *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[id]; ok && current == expected {
		delete(r.sessions, id)
		return true
	}

	return false
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Each calls fn for every session registered at the moment of the call.
// The registry is not locked while fn runs.
func (r *Registry) Each(fn func(s *Session)) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))

	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}
