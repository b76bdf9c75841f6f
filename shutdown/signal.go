package shutdown

import (
	"os"
	"sync"
)

// SignalCounter counts shutdown signals. The first is a request to stop
// gracefully; reaching forceAfter calls onForce with that signal.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	first      os.Signal
	forceAfter int
	onForce    func(os.Signal)
}

// NewSignalCounter returns a counter that calls onForce on the forceAfter-th
// signal. A nil onForce never fires; forceAfter < 1 fires on every signal.
func NewSignalCounter(forceAfter int, onForce func(os.Signal)) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Observe records sig and returns the running count.
func (s *SignalCounter) Observe(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.count == 1 {
		s.first = sig
	}
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce(sig)
	}
	return s.count
}

// Count returns how many signals have been observed.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// First returns the first signal observed, or nil.
func (s *SignalCounter) First() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}
