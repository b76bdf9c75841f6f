package shutdown

import (
	"context"
	"errors"
	"syscall"

	"go.uber.org/zap"
)

// SessionCloser is the part of the bridge shutdown needs.
type SessionCloser interface {
	Live() int
	Shutdown() error
}

// CloseSessions returns a cleanup that destroys every live session.
func CloseSessions(logger *zap.Logger, b SessionCloser) CleanupFunc {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		live := b.Live()
		if live == 0 {
			return nil
		}
		logger.Info("Closing llama sessions", zap.Int("sessions", live))
		return b.Shutdown()
	}
}

// SyncLogger returns a cleanup that flushes logger. Sync errors from
// terminals (EINVAL, ENOTTY) are ignored since stderr cannot be fsynced.
func SyncLogger(logger *zap.Logger) CleanupFunc {
	return func(ctx context.Context) error {
		err := logger.Sync()
		if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return err
	}
}
