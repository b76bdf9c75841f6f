package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"llama_bridge/core"

	"go.uber.org/zap"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Manager ties signal handling to generation lifetimes. The first SIGINT or
// SIGTERM cancels Context and every operation started through WrapOperation;
// a second one exits the process with the signal's exit code.
//
//	m := shutdown.NewManager(logger)
//	m.Register("sessions", shutdown.PrioritySessions, shutdown.CloseSessions(logger, b))
//	m.Start()
//	defer m.Shutdown()
//
//	err := m.WrapOperation(ctx, "generate", func(ctx context.Context) error {
//	    res, err := b.GenerateContext(ctx, h, prompt, n)
//	    ...
//	})
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration
	exit    func(code int)

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *CleanupRegistry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets how long Shutdown waits for operations and cleanups.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithExit replaces os.Exit for the forced exit on a repeated signal.
func WithExit(exit func(code int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager returns a Manager that is not yet listening for signals.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger,
		timeout:  DefaultTimeout,
		exit:     os.Exit,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewCleanupRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func(sig os.Signal) {
		code := core.ExitCodeForSignal(sig)
		m.logger.Warn("Received second signal, exiting without cleanup",
			zap.String("signal", sig.String()),
			zap.Int("exit_code", code),
		)
		_ = m.logger.Sync()
		m.exit(code)
	})
	return m
}

// Context is cancelled when the first signal arrives or Shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup that Shutdown runs after operations drain.
func (m *Manager) Register(name string, priority int, fn CleanupFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered cleanup",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start subscribes to SIGINT and SIGTERM. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.shutdown {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
	m.logger.Debug("Listening for shutdown signals")
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Observe(sig) == 1 {
		m.logger.Info("Received shutdown signal, cancelling generation",
			zap.String("signal", sig.String()),
			zap.Int64("active_operations", m.tracker.ActiveCount()),
		)
		m.cancel()
	}
}

// Shutdown cancels Context, refuses new operations, waits for in-flight ones
// and then runs the cleanups. Later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	start := time.Now()
	m.cancel()
	m.tracker.Close()

	if active := m.tracker.ActiveCount(); active > 0 {
		m.logger.Info("Waiting for in-flight operations", zap.Int64("active", active))
	}
	if err := m.tracker.Wait(m.timeout); err != nil {
		m.logger.Warn("Operations still running at shutdown",
			zap.Int64("remaining", m.tracker.ActiveCount()),
			zap.Duration("waited", time.Since(start)),
		)
	}

	remaining := m.timeout - time.Since(start)
	if remaining < time.Second {
		remaining = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	m.logger.Debug("Running cleanups", zap.Strings("cleanups", m.registry.Names()))
	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("Cleanup failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.logger.Debug("Shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}

// WrapOperation runs fn as a tracked operation. The context passed to fn is
// cancelled by either ctx or the manager, so a signal stops a generation at
// its next token. ErrTrackerClosed is returned once shutdown has begun.
func (m *Manager) WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	if !m.tracker.Start() {
		m.logger.Debug("Operation rejected during shutdown", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ctx.Err() != nil {
		return context.Canceled
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	return fn(opCtx)
}

// ActiveOperations returns the number of operations in flight.
func (m *Manager) ActiveOperations() int64 {
	return m.tracker.ActiveCount()
}

// IsShuttingDown reports whether a signal arrived or Shutdown was called.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.ctx.Err() != nil
}

// RegisteredCleanups lists cleanup names in run order.
func (m *Manager) RegisteredCleanups() []string {
	return m.registry.Names()
}

// ExitCode maps the first signal received to a process exit code, or
// core.ExitCodeSuccess when none arrived.
func (m *Manager) ExitCode() int {
	if sig := m.signals.First(); sig != nil {
		return core.ExitCodeForSignal(sig)
	}
	return core.ExitCodeSuccess
}
