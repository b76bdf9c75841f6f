// Package llamaruntime provides Go bindings to llama.cpp for local LLM inference.
// This file contains pure Go types and constants - no CGo dependencies.
package llamaruntime

import (
	"time"
)

// =============================================================================
// Default Constants
// =============================================================================

const (
	// DefaultNumGPULayers keeps every layer on the CPU.
	DefaultNumGPULayers = 0

	// DefaultContextSize is the context window in tokens (prompt + response).
	DefaultContextSize = 2048

	// DefaultBatchSize is the logical batch size handed to llama_decode.
	DefaultBatchSize = 512

	// DefaultNumThreads is the number of CPU threads used for generation.
	DefaultNumThreads = 4

	// DefaultNumThreadsBatch is the number of CPU threads used for prompt processing.
	DefaultNumThreadsBatch = 4

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.8

	// DefaultTopK is the top-k sampling parameter.
	DefaultTopK = 40

	// DefaultTopP is the top-p (nucleus) sampling parameter.
	DefaultTopP = 0.95

	// DefaultSeed is LLAMA_DEFAULT_SEED; the library picks a random seed.
	DefaultSeed uint32 = 0xFFFFFFFF

	// DefaultContextMargin is the number of tokens left free when the
	// generation budget is clamped to fit the context window.
	DefaultContextMargin = 10

	// DefaultPieceBufferSize is the buffer size for converting one token to text.
	DefaultPieceBufferSize = 256

	// progressInterval is how often (in tokens) generation progress is logged.
	progressInterval = 10

	// previewLength is how much of the prompt and result is logged.
	previewLength = 100

	// logTokenCount is how many leading prompt token ids are logged.
	logTokenCount = 5
)

// Token is a llama.cpp vocabulary id.
type Token int32

// =============================================================================
// Configuration Types
// =============================================================================

// ModelParams maps onto llama_model_params.
type ModelParams struct {
	// NumGPULayers is the number of layers to offload to GPU.
	// 0 keeps the model on the CPU, -1 offloads everything.
	NumGPULayers int

	// UseMMap enables memory-mapped model loading.
	UseMMap bool

	// UseMlock pins the model in RAM. May require elevated privileges.
	UseMlock bool
}

// ContextParams maps onto llama_context_params.
type ContextParams struct {
	ContextSize     int
	BatchSize       int
	NumThreads      int
	NumThreadsBatch int
}

// SamplerParams configures the temp -> top-k -> top-p -> dist sampler chain.
type SamplerParams struct {
	Temperature float32
	TopK        int
	TopP        float32
	Seed        uint32
}

// Config contains everything needed to open a Session.
type Config struct {
	// ModelPath is the path to the GGUF model file. Required.
	ModelPath string

	Model   ModelParams
	Context ContextParams
	Sampler SamplerParams

	// ContextMargin is the number of tokens kept free when the generation
	// budget has to be clamped.
	ContextMargin int

	// PieceBufferSize is the byte buffer used per token-to-piece conversion.
	PieceBufferSize int
}

// DefaultConfig returns a Config with the bridge defaults: CPU only, mmap on,
// a 2048-token window and a temp 0.8 / top-k 40 / top-p 0.95 sampler.
func DefaultConfig() Config {
	return Config{
		Model: ModelParams{
			NumGPULayers: DefaultNumGPULayers,
			UseMMap:      true,
			UseMlock:     false,
		},
		Context: ContextParams{
			ContextSize:     DefaultContextSize,
			BatchSize:       DefaultBatchSize,
			NumThreads:      DefaultNumThreads,
			NumThreadsBatch: DefaultNumThreadsBatch,
		},
		Sampler: SamplerParams{
			Temperature: DefaultTemperature,
			TopK:        DefaultTopK,
			TopP:        DefaultTopP,
			Seed:        DefaultSeed,
		},
		ContextMargin:   DefaultContextMargin,
		PieceBufferSize: DefaultPieceBufferSize,
	}
}

// applyDefaults fills zero values that would make llama.cpp misbehave.
// Fields where zero is meaningful (GPU layers, temperature, top-k) are left alone.
func (c *Config) applyDefaults() {
	if c.Context.ContextSize <= 0 {
		c.Context.ContextSize = DefaultContextSize
	}
	if c.Context.BatchSize <= 0 {
		c.Context.BatchSize = DefaultBatchSize
	}
	if c.Context.NumThreads <= 0 {
		c.Context.NumThreads = DefaultNumThreads
	}
	if c.Context.NumThreadsBatch <= 0 {
		c.Context.NumThreadsBatch = c.Context.NumThreads
	}
	if c.Sampler.TopP <= 0 {
		c.Sampler.TopP = DefaultTopP
	}
	if c.ContextMargin < 0 {
		c.ContextMargin = DefaultContextMargin
	}
	if c.PieceBufferSize <= 0 {
		c.PieceBufferSize = DefaultPieceBufferSize
	}
}

// =============================================================================
// Result Types
// =============================================================================

// StopReason records why the sample loop ended.
type StopReason string

const (
	StopEndOfGeneration StopReason = "eog"
	StopMaxTokens       StopReason = "max_tokens"
	StopPieceError      StopReason = "piece_error"
	StopDecodeError     StopReason = "decode_error"
	StopCanceled        StopReason = "canceled"
)

// SpeedRating is a coarse classification of generation throughput.
type SpeedRating string

const (
	SpeedVerySlow   SpeedRating = "very_slow"
	SpeedSlow       SpeedRating = "slow"
	SpeedAcceptable SpeedRating = "acceptable"
	SpeedGood       SpeedRating = "good"
)

// RateSpeed classifies a tokens-per-second figure.
func RateSpeed(tokensPerSecond float64) SpeedRating {
	switch {
	case tokensPerSecond < 1:
		return SpeedVerySlow
	case tokensPerSecond < 3:
		return SpeedSlow
	case tokensPerSecond < 8:
		return SpeedAcceptable
	default:
		return SpeedGood
	}
}

// tokensPerSecond divides decoded tokens by elapsed milliseconds, treating
// anything under a millisecond as one.
func tokensPerSecond(decoded int, elapsed time.Duration) float64 {
	ms := elapsed.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return float64(decoded) * 1000 / float64(ms)
}

// GenerateResult contains the outcome of a single Generate call.
type GenerateResult struct {
	// GenerationID identifies this call in the logs.
	GenerationID string

	// Text is the generated text. It holds partial output when the loop
	// stopped on a piece or decode error or on cancellation.
	Text string

	// PromptTokens is the tokenized prompt length.
	PromptTokens int

	// GeneratedTokens counts tokens that were sampled and decoded successfully.
	GeneratedTokens int

	// RequestedMaxTokens is the budget the caller asked for.
	RequestedMaxTokens int

	// MaxTokens is the budget after clamping to the context window.
	MaxTokens int

	StopReason      StopReason
	PromptDecode    time.Duration
	Generation      time.Duration
	TokensPerSecond float64
	Speed           SpeedRating
}

// Stats contains cumulative statistics for a Session.
type Stats struct {
	Generations     int64
	PromptTokens    int64
	GeneratedTokens int64
	Errors          int64
	TotalDuration   time.Duration
	LastGeneration  time.Time
}

// ModelInfo describes the model a Session has loaded.
type ModelInfo struct {
	Path         string
	Name         string
	Size         int64
	ContextSize  int
	LoadDuration time.Duration
	LoadedAt     time.Time
}
