package bridge

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
	"llama_bridge/logging"
)

var (
	defaultOnce   sync.Once
	defaultMu     sync.Mutex
	defaultBridge *Bridge
	defaultLogger *logging.Logger
)

// Default returns the process-wide Bridge used by the C exports. The first
// call loads .env, reads the LLAMA_* configuration and opens the log file.
// Invalid configuration falls back to defaults with a logged warning, since
// a foreign caller has no way to receive the error.
func Default() *Bridge {
	defaultOnce.Do(func() {
		b, logger := loadDefault()

		defaultMu.Lock()
		defaultLogger = logger
		defaultBridge = b
		defaultMu.Unlock()
	})

	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultBridge
}

// loadDefault builds a Bridge from .env and the LLAMA_* settings. When the
// configuration is invalid the defaults are used, but the log destination
// and level from the environment are still honored.
func loadDefault(opts ...llamaruntime.Option) (*Bridge, *logging.Logger) {
	envErr := godotenv.Load()

	cfg, cfgErr := core.LoadConfig()
	if cfgErr != nil {
		cfg = core.DefaultConfig()
		cfg.LogFile = core.GetEnvOrDefault("LLAMA_LOG_FILE", cfg.LogFile)
		cfg.LogLevel = core.GetEnvOrDefault("LLAMA_LOG_LEVEL", cfg.LogLevel)
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llama_bridge: %v; logging to stderr only\n", err)
		logger, _ = logging.NewLogger(logging.Options{Level: zapcore.InfoLevel})
	}
	logger = logger.Named("bridge")

	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("could not load .env file", zap.Error(envErr))
	}
	if cfgErr != nil {
		logger.Warn("invalid configuration, using defaults",
			zap.String("code", core.GetErrorCode(cfgErr)),
			zap.Error(cfgErr))
	}
	logger.Debug("default bridge ready", zap.String("log_file", logger.LogFilePath()))

	return New(cfg, logger.Zap(), opts...), logger
}

// NewLogger builds the console+file logger described by cfg.
func NewLogger(cfg *core.Config) (*logging.Logger, error) {
	return logging.NewLogger(logging.Options{
		Development: cfg.DevMode,
		Level:       logging.ParseLevel(cfg.LogLevel, zapcore.InfoLevel),
		FilePath:    cfg.LogFile,
		File:        logging.DefaultFileWriterConfig(),
	})
}

// ShutdownDefault closes every session opened through Default and flushes
// the log. It is a no-op if Default was never called.
func ShutdownDefault() {
	defaultMu.Lock()
	b, logger := defaultBridge, defaultLogger
	defaultMu.Unlock()

	if b == nil {
		return
	}
	if err := b.Shutdown(); err != nil {
		logger.Error("shutdown closed sessions with errors", zap.Error(err))
	}
	_ = logger.Sync()
}
