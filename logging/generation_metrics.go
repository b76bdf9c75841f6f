package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GenerationMetrics summarizes one generate call for structured logging.
type GenerationMetrics struct {
	ModelName       string
	PromptTokens    int
	GeneratedTokens int
	MaxTokens       int
	StopReason      string
	PromptDecode    time.Duration
	Generation      time.Duration
	TokensPerSecond float64
	Speed           string
	ResultBytes     int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
// Durations are encoded in milliseconds.
func (m GenerationMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if m.ModelName != "" {
		enc.AddString("model_name", m.ModelName)
	}
	enc.AddInt("prompt_tokens", m.PromptTokens)
	enc.AddInt("generated_tokens", m.GeneratedTokens)
	enc.AddInt("max_tokens", m.MaxTokens)
	enc.AddString("stop_reason", m.StopReason)
	enc.AddInt64("prompt_decode_ms", m.PromptDecode.Milliseconds())
	enc.AddInt64("generation_ms", m.Generation.Milliseconds())
	enc.AddFloat64("tokens_per_second", m.TokensPerSecond)
	enc.AddString("speed", m.Speed)
	enc.AddInt("result_bytes", m.ResultBytes)
	return nil
}

// GenerationFields wraps metrics as a single nested "generation" field.
func GenerationFields(m GenerationMetrics) zap.Field {
	return zap.Object("generation", m)
}

// TokenFields returns flat fields for prompt size against the window.
func TokenFields(prompt, budget, contextSize int) []zap.Field {
	return []zap.Field{
		zap.Int("prompt_tokens", prompt),
		zap.Int("max_tokens", budget),
		zap.Int("n_ctx", contextSize),
	}
}

// TimingFields returns elapsed-time fields for a step that started at start.
func TimingFields(step string, start time.Time) []zap.Field {
	elapsed := time.Since(start)
	return []zap.Field{
		zap.String("step", step),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
	}
}
