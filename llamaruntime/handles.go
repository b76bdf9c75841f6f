package llamaruntime

import (
	"errors"
	"sync"
)

// Handle is an opaque, non-zero reference to a registered Session.
// It is what crosses the foreign-call boundary in place of a pointer.
type Handle int64

// Registry maps handles to sessions. Handles are never reused within a
// Registry, and zero is never issued so callers can treat it as "no session".
type Registry struct {
	mu       sync.RWMutex
	next     Handle
	sessions map[Handle]*Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Handle]*Session)}
}

// Add registers s and returns its handle.
func (r *Registry) Add(s *Session) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	if r.next <= 0 {
		r.next = 1
	}
	r.sessions[r.next] = s
	return r.next
}

// Get returns the session for h, or ErrInvalidHandle.
func (r *Registry) Get(h Handle) (*Session, error) {
	if h == 0 {
		return nil, ErrInvalidHandle
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[h]
	if !ok {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// Remove forgets h and returns the session it referred to. The session is
// not closed.
func (r *Registry) Remove(h Handle) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[h]
	if ok {
		delete(r.sessions, h)
	}
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll removes and closes every session, joining any close errors.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[Handle]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
