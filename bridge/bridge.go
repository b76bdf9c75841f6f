// Package bridge exposes the three-call init / generate / destroy lifecycle
// that foreign callers use. Handles are opaque int64 values and every
// failure is reported in-band: 0 from Init, "" from Generate.
package bridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
)

// ContextResetFailedText is what Generate returns when the per-call
// inference context could not be recreated.
const ContextResetFailedText = "[context recreation failed]"

// Bridge owns a registry of sessions opened with a common configuration.
type Bridge struct {
	cfg      *core.Config
	logger   *zap.Logger
	registry *llamaruntime.Registry
	opts     []llamaruntime.Option
}

// New returns a Bridge that opens sessions with cfg. Extra options are
// passed to every llamaruntime.Open call.
func New(cfg *core.Config, logger *zap.Logger, opts ...llamaruntime.Option) *Bridge {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		cfg:      cfg,
		logger:   logger,
		registry: llamaruntime.NewRegistry(),
		opts:     opts,
	}
}

// RuntimeConfig converts the flat bridge configuration into session parameters.
func RuntimeConfig(c *core.Config, modelPath string) llamaruntime.Config {
	return llamaruntime.Config{
		ModelPath: modelPath,
		Model: llamaruntime.ModelParams{
			NumGPULayers: c.GPULayers,
			UseMMap:      c.UseMMap,
			UseMlock:     c.UseMlock,
		},
		Context: llamaruntime.ContextParams{
			ContextSize:     c.ContextSize,
			BatchSize:       c.BatchSize,
			NumThreads:      c.Threads,
			NumThreadsBatch: c.ThreadsBatch,
		},
		Sampler: llamaruntime.SamplerParams{
			Temperature: float32(c.Temperature),
			TopK:        c.TopK,
			TopP:        float32(c.TopP),
			Seed:        uint32(c.Seed),
		},
		ContextMargin:   c.ContextMargin,
		PieceBufferSize: llamaruntime.DefaultPieceBufferSize,
	}
}

// Open loads modelPath and returns its handle. An empty modelPath falls
// back to the configured LLAMA_MODEL_PATH.
func (b *Bridge) Open(modelPath string) (llamaruntime.Handle, error) {
	if modelPath == "" {
		if !b.cfg.HasModel() {
			return 0, core.ErrMissingConfig("LLAMA_MODEL_PATH")
		}
		modelPath = b.cfg.ModelPath
	}
	opts := append([]llamaruntime.Option{llamaruntime.WithLogger(b.logger)}, b.opts...)

	s, err := llamaruntime.Open(RuntimeConfig(b.cfg, modelPath), opts...)
	if err != nil {
		return 0, err
	}

	h := b.registry.Add(s)
	b.logger.Info("session registered", zap.Int64("handle", int64(h)), zap.Int("live_sessions", b.registry.Len()))
	return h, nil
}

// Init loads modelPath and returns a non-zero handle, or 0 on any failure.
func (b *Bridge) Init(modelPath string) int64 {
	h, err := b.Open(modelPath)
	if err != nil {
		b.logger.Error("init failed", zap.String("model_path", modelPath), zap.Error(err))
		return 0
	}
	return int64(h)
}

// GenerateContext runs one generation on handle with full error detail.
func (b *Bridge) GenerateContext(ctx context.Context, handle int64, prompt string, maxTokens int) (*llamaruntime.GenerateResult, error) {
	s, err := b.registry.Get(llamaruntime.Handle(handle))
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, prompt, maxTokens)
}

// Generate runs one generation and returns its text. It returns "" on
// failure or when maxTokens is not positive, and ContextResetFailedText when the context could not be
// recreated. Text produced before a mid-generation failure is returned.
func (b *Bridge) Generate(handle int64, prompt string, maxTokens int) string {
	log := b.logger.With(zap.Int64("handle", handle))
	if maxTokens <= 0 {
		log.Debug("nothing to generate", zap.Int("max_tokens", maxTokens))
		return ""
	}

	res, err := b.GenerateContext(context.Background(), handle, prompt, maxTokens)
	switch {
	case errors.Is(err, llamaruntime.ErrContextResetFailed):
		return ContextResetFailedText
	case err != nil:
		log.Error("generate failed", zap.Error(err))
		return ""
	}

	if res.StopReason != llamaruntime.StopEndOfGeneration && res.StopReason != llamaruntime.StopMaxTokens {
		log.Warn("generation stopped early",
			zap.String("stop_reason", string(res.StopReason)),
			zap.Int("generated_tokens", res.GeneratedTokens))
	}
	return res.Text
}

// Destroy closes and forgets handle. Zero and unknown handles are ignored.
func (b *Bridge) Destroy(handle int64) {
	if handle == 0 {
		return
	}

	s, ok := b.registry.Remove(llamaruntime.Handle(handle))
	if !ok {
		b.logger.Warn("destroy called with unknown handle", zap.Int64("handle", handle))
		return
	}
	if err := s.Close(); err != nil {
		b.logger.Error("closing session failed", zap.Int64("handle", handle), zap.Error(err))
		return
	}
	b.logger.Info("session destroyed", zap.Int64("handle", handle), zap.Int("live_sessions", b.registry.Len()))
}

// Session returns the live session behind handle.
func (b *Bridge) Session(handle int64) (*llamaruntime.Session, error) {
	return b.registry.Get(llamaruntime.Handle(handle))
}

// Live returns the number of open handles.
func (b *Bridge) Live() int {
	return b.registry.Len()
}

// Shutdown destroys every live handle.
func (b *Bridge) Shutdown() error {
	n := b.registry.Len()
	err := b.registry.CloseAll()
	b.logger.Info("bridge shut down", zap.Int("closed_sessions", n))
	return err
}
