package shutdown

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOperationTracker_StartDone(t *testing.T) {
	tracker := NewOperationTracker()

	if !tracker.Start() {
		t.Fatal("Start on open tracker returned false")
	}
	if got := tracker.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}
	tracker.Done()
	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}

func TestOperationTracker_CloseRejectsNewOps(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Close()

	if tracker.Start() {
		t.Error("Start succeeded after Close")
	}
	if !tracker.IsClosed() {
		t.Error("IsClosed = false after Close")
	}
}

func TestOperationTracker_WaitNoOperations(t *testing.T) {
	tracker := NewOperationTracker()
	if err := tracker.Wait(10 * time.Millisecond); err != nil {
		t.Errorf("Wait with nothing in flight: %v", err)
	}
}

func TestOperationTracker_WaitForInFlight(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Start()
	tracker.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tracker.Done()
	}()

	if err := tracker.Wait(time.Second); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestOperationTracker_WaitTimeout(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Start()
	defer tracker.Done()

	if err := tracker.Wait(10 * time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("Wait error = %v, want ErrWaitTimeout", err)
	}
}

func TestOperationTracker_IdleAgainAfterReuse(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Start()
	tracker.Done()
	tracker.Start()

	if err := tracker.Wait(10 * time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("second round: Wait error = %v, want ErrWaitTimeout", err)
	}
	tracker.Done()
	if err := tracker.Wait(10 * time.Millisecond); err != nil {
		t.Errorf("after Done: %v", err)
	}
}

func TestOperationTracker_ConcurrentStartDone(t *testing.T) {
	tracker := NewOperationTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.Start() {
				tracker.Done()
			}
		}()
	}
	wg.Wait()

	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}

func TestOperationTracker_DoneWithoutStartPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewOperationTracker().Done()
}
