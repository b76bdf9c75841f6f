package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewMultiCore_Production(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCore(zapcore.InfoLevel, zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), false)
	logger := zap.New(core)
	logger.Info("tokenized", zap.Int("tokens", 12))

	for name, buf := range map[string]*bytes.Buffer{"console": &consoleBuf, "file": &fileBuf} {
		var entry map[string]interface{}
		if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
			t.Fatalf("%s output is not JSON: %v", name, err)
		}
		if entry["tokens"] != float64(12) {
			t.Errorf("%s tokens = %v, want 12", name, entry["tokens"])
		}
	}
}

func TestNewMultiCore_Development(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCore(zapcore.InfoLevel, zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), true)
	logger := zap.New(core)
	logger.Info("tokenized")

	if strings.HasPrefix(consoleBuf.String(), "{") {
		t.Errorf("console should be human-readable, got %q", consoleBuf.String())
	}
	if !strings.HasPrefix(fileBuf.String(), "{") {
		t.Errorf("file should be JSON, got %q", fileBuf.String())
	}
}

func TestNewMultiCore_ConsoleOnly(t *testing.T) {
	var consoleBuf bytes.Buffer

	core := NewMultiCore(zapcore.InfoLevel, zapcore.AddSync(&consoleBuf), nil, false)
	zap.New(core).Info("only console")

	if !strings.Contains(consoleBuf.String(), "only console") {
		t.Errorf("console = %q", consoleBuf.String())
	}
}

func TestNewMultiCore_Level(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCore(zapcore.ErrorLevel, zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), false)
	zap.New(core).Warn("below threshold")

	if consoleBuf.Len() != 0 || fileBuf.Len() != 0 {
		t.Error("entries below level should be dropped on both outputs")
	}
}
