package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCleanupRegistry_RunsInPriorityOrder(t *testing.T) {
	registry := NewCleanupRegistry()

	var order []string
	record := func(name string) CleanupFunc {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	registry.Register("logger", PriorityLogger, record("logger"))
	registry.Register("sessions", PrioritySessions, record("sessions"))
	registry.Register("sessions-2", PrioritySessions, record("sessions-2"))

	want := []string{"sessions", "sessions-2", "logger"}
	if got := registry.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if errs := registry.Run(context.Background()); len(errs) != 0 {
		t.Fatalf("Run errors: %v", errs)
	}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("run order = %v, want %v", order, want)
	}
}

func TestCleanupRegistry_ContinuesAfterError(t *testing.T) {
	registry := NewCleanupRegistry()
	boom := errors.New("boom")

	ran := false
	registry.Register("fails", 1, func(ctx context.Context) error { return boom })
	registry.Register("after", 2, func(ctx context.Context) error {
		ran = true
		return nil
	})

	errs := registry.Run(context.Background())
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !errors.Is(errs[0], boom) {
		t.Errorf("error %v does not wrap boom", errs[0])
	}
	if !strings.HasPrefix(errs[0].Error(), "fails: ") {
		t.Errorf("error %q not prefixed with cleanup name", errs[0])
	}
	if !ran {
		t.Error("cleanup after a failing one did not run")
	}
}

func TestCleanupRegistry_RunOnce(t *testing.T) {
	registry := NewCleanupRegistry()

	calls := 0
	registry.Register("count", 1, func(ctx context.Context) error {
		calls++
		return nil
	})

	registry.Run(context.Background())
	registry.Run(context.Background())
	if calls != 1 {
		t.Errorf("cleanup ran %d times, want 1", calls)
	}

	registry.Register("late", 1, func(ctx context.Context) error { return nil })
	if registry.Count() != 1 {
		t.Errorf("Count = %d, registration after Run was accepted", registry.Count())
	}
}

func TestCleanupRegistry_PassesContext(t *testing.T) {
	registry := NewCleanupRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	registry.Register("ctx", 1, func(ctx context.Context) error { return ctx.Err() })

	errs := registry.Run(ctx)
	if len(errs) != 1 || !errors.Is(errs[0], context.Canceled) {
		t.Errorf("errs = %v, want context.Canceled", errs)
	}
}
