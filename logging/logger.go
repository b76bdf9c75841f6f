// Package logging builds the zap logger shared by the bridge, the C ABI
// library and the CLI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures NewLogger.
type Options struct {
	// Development selects colored console output.
	Development bool

	// Level is the minimum level written to both outputs.
	Level zapcore.Level

	// FilePath is the rotating log file. Empty disables file output.
	FilePath string

	// File holds rotation settings for FilePath.
	File FileWriterConfig

	// Console receives console output. Defaults to stderr so that stdout
	// stays clean for generated text.
	Console zapcore.WriteSyncer
}

// Logger wraps zap.Logger with the console+file tee used across the module.
//
// Example:
//
//	logger, err := logging.NewLogger(logging.Options{FilePath: "llama_bridge.log"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	logger.Info("model loaded", zap.String("path", path))
type Logger struct {
	zap      *zap.Logger
	level    zap.AtomicLevel
	filePath string
}

// NewLogger creates a Logger from opts.
// Returns an error if the log file directory cannot be created.
func NewLogger(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(opts.Level)

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}

	var fileWriter zapcore.WriteSyncer
	if opts.FilePath != "" {
		if dir := filepath.Dir(opts.FilePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		fileWriter = NewFileWriter(opts.FilePath, opts.File)
	}

	core := NewMultiCore(level, console, fileWriter, opts.Development)
	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)

	return &Logger{
		zap:      zapLogger,
		level:    level,
		filePath: opts.FilePath,
	}, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	z := zap.NewNop()
	return &Logger{
		zap:   z,
		level: zap.NewAtomicLevelAt(zapcore.FatalLevel),
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs a message at DebugLevel.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

// Info logs a message at InfoLevel.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Warn logs a message at WarnLevel.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

// Error logs a message at ErrorLevel.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// With creates a child logger carrying fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.zap.With(fields...)
	return l.derive(child)
}

// Named adds a sub-logger name.
func (l *Logger) Named(name string) *Logger {
	return l.derive(l.zap.Named(name))
}

func (l *Logger) derive(z *zap.Logger) *Logger {
	return &Logger{
		zap:      z,
		level:    l.level,
		filePath: l.filePath,
	}
}

// SetLevel changes the minimum level at runtime for this logger and all
// loggers derived from it.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// Zap returns the underlying zap.Logger without the wrapper's caller skip.
func (l *Logger) Zap() *zap.Logger {
	return l.zap.WithOptions(zap.AddCallerSkip(-1))
}

// LogFilePath returns the path to the log file.
func (l *Logger) LogFilePath() string {
	return l.filePath
}
