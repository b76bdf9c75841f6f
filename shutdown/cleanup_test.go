package shutdown

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeBridge struct {
	live     int
	closed   int
	closeErr error
}

func (f *fakeBridge) Live() int { return f.live }

func (f *fakeBridge) Shutdown() error {
	f.closed++
	f.live = 0
	return f.closeErr
}

func TestCloseSessions(t *testing.T) {
	b := &fakeBridge{live: 2}
	fn := CloseSessions(zaptest.NewLogger(t), b)

	if err := fn(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if b.closed != 1 {
		t.Errorf("Shutdown called %d times, want 1", b.closed)
	}

	// Nothing live: no call.
	if err := fn(context.Background()); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if b.closed != 1 {
		t.Errorf("Shutdown called with no live sessions")
	}
}

func TestCloseSessions_PropagatesError(t *testing.T) {
	boom := errors.New("free failed")
	b := &fakeBridge{live: 1, closeErr: boom}

	err := CloseSessions(zaptest.NewLogger(t), b)(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestCloseSessions_ExpiredContext(t *testing.T) {
	b := &fakeBridge{live: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := CloseSessions(zaptest.NewLogger(t), b)(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if b.closed != 0 {
		t.Error("sessions closed despite expired context")
	}
}

func TestSyncLogger(t *testing.T) {
	if err := SyncLogger(zap.NewNop())(context.Background()); err != nil {
		t.Errorf("SyncLogger on nop logger: %v", err)
	}
}

func TestCleanups_WithManager(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := &fakeBridge{live: 3}

	manager := NewManager(logger)
	manager.Register("sessions", PrioritySessions, CloseSessions(logger, b))
	manager.Register("logger", PriorityLogger, SyncLogger(zap.NewNop()))

	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if b.live != 0 {
		t.Errorf("live sessions after shutdown = %d", b.live)
	}
}
