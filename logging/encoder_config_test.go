package logging

import (
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestNewEncoderConfig_Keys(t *testing.T) {
	cfg := NewEncoderConfig()

	keys := map[string]string{
		"TimeKey":       cfg.TimeKey,
		"LevelKey":      cfg.LevelKey,
		"NameKey":       cfg.NameKey,
		"CallerKey":     cfg.CallerKey,
		"MessageKey":    cfg.MessageKey,
		"StacktraceKey": cfg.StacktraceKey,
	}
	want := map[string]string{
		"TimeKey":       FieldTimestamp,
		"LevelKey":      FieldLevel,
		"NameKey":       FieldLogger,
		"CallerKey":     FieldCaller,
		"MessageKey":    FieldMessage,
		"StacktraceKey": FieldStacktrace,
	}

	for name, got := range keys {
		if got != want[name] {
			t.Errorf("%s = %q, want %q", name, got, want[name])
		}
	}
}

func TestNewConsoleEncoderConfig_SharesKeys(t *testing.T) {
	file := NewEncoderConfig()
	console := NewConsoleEncoderConfig()

	if console.MessageKey != file.MessageKey || console.TimeKey != file.TimeKey {
		t.Error("console and file encoders should use the same keys")
	}
	if console.EncodeTime == nil || console.EncodeLevel == nil {
		t.Error("console encoders must be set")
	}
}

func TestShortTimeEncoder(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	ts := time.Date(2026, 1, 2, 13, 4, 5, 6_000_000, time.UTC)

	_ = enc.AddArray("t", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
		shortTimeEncoder(ts, arr)
		return nil
	}))

	got := enc.Fields["t"].([]interface{})
	if len(got) != 1 || got[0] != "13:04:05.006" {
		t.Errorf("shortTimeEncoder = %v, want [13:04:05.006]", got)
	}
}
