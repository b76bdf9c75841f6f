package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLevel parses a level name case-insensitively.
// Valid levels: debug, info, warn, warning, error, fatal. Anything else
// returns defaultLevel.
func ParseLevel(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return defaultLevel
	}
}
