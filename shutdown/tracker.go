// Package shutdown coordinates signal-driven teardown of the bridge: it
// cancels in-flight generations, waits for them to drain, then runs the
// registered cleanups (closing sessions, flushing logs) in priority order.
package shutdown

import (
	"errors"
	"sync"
	"time"
)

// ErrTrackerClosed is returned when an operation is started after shutdown began.
var ErrTrackerClosed = errors.New("operation tracker is closed")

// ErrWaitTimeout is returned when in-flight operations outlive the wait.
var ErrWaitTimeout = errors.New("wait timeout: operations did not complete in time")

// OperationTracker counts in-flight operations and lets shutdown wait for
// them. Once closed it refuses new work.
type OperationTracker struct {
	mu     sync.Mutex
	active int64
	closed bool
	idle   chan struct{} // closed whenever active drops to zero
}

// NewOperationTracker returns an open tracker with nothing in flight.
func NewOperationTracker() *OperationTracker {
	idle := make(chan struct{})
	close(idle)
	return &OperationTracker{idle: idle}
}

// Start registers a new operation. It returns false once the tracker is
// closed; on true the caller must call Done exactly once.
func (t *OperationTracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if t.active == 0 {
		t.idle = make(chan struct{})
	}
	t.active++
	return true
}

// Done marks one operation finished.
func (t *OperationTracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == 0 {
		panic("shutdown: Done called without matching Start")
	}
	t.active--
	if t.active == 0 {
		close(t.idle)
	}
}

// Wait blocks until no operation is in flight or timeout elapses.
func (t *OperationTracker) Wait(timeout time.Duration) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-idle:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Close stops new operations from starting. Running ones are unaffected.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// ActiveCount returns the number of operations in flight.
func (t *OperationTracker) ActiveCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// IsClosed reports whether Close has been called.
func (t *OperationTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
