package llamaruntime

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"llama_bridge/logging"
)

// Session owns one loaded model together with its inference context and
// sampler chain. Generate calls on a Session are serialized; each call runs
// against a freshly created context so no KV-cache state carries over.
type Session struct {
	cfg    Config
	eng    Engine
	logger *zap.Logger

	mu      sync.Mutex
	model   ModelHandle
	ctx     ContextHandle
	sampler SamplerHandle
	closed  bool

	info ModelInfo

	// Statistics
	generations     atomic.Int64
	promptTokens    atomic.Int64
	generatedTokens atomic.Int64
	errorCount      atomic.Int64
	totalDuration   atomic.Int64 // nanoseconds
	lastGeneration  atomic.Int64 // unix nanoseconds
}

// Option configures a Session at Open time.
type Option func(*Session)

// WithLogger sets the logger used for lifecycle and generation events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEngine replaces the llama.cpp engine.
func WithEngine(e Engine) Option {
	return func(s *Session) {
		if e != nil {
			s.eng = e
		}
	}
}

// Open verifies the model file, loads it, and prepares a context and
// sampler chain. The returned Session must be closed with Close.
//
// Errors wrap ErrModelNotFound, ErrModelLoadFailed, ErrContextCreateFailed
// or ErrBackendUnavailable.
func Open(cfg Config, opts ...Option) (*Session, error) {
	cfg.applyDefaults()

	s := &Session{
		cfg:    cfg,
		eng:    defaultEngine,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	log := s.logger.With(zap.String("model_path", cfg.ModelPath))
	start := time.Now()
	log.Info("opening llama session")

	size, err := probeModelFile(cfg.ModelPath)
	if err != nil {
		log.Error("cannot open model file", zap.Error(err))
		return nil, &LlamaError{
			Op:      "open",
			Code:    -1,
			Message: fmt.Sprintf("cannot open model file %q", cfg.ModelPath),
			Err:     fmt.Errorf("%w: %v", ErrModelNotFound, err),
		}
	}
	log.Info("model file found",
		zap.Int64("size_bytes", size),
		zap.Float64("size_mib", float64(size)/1024/1024),
		zap.String("size", humanize.IBytes(uint64(size))))

	acquireBackend(s.eng)
	log.Debug("backend initialized")

	log.Info("loading model",
		zap.Int("n_gpu_layers", cfg.Model.NumGPULayers),
		zap.Bool("use_mmap", cfg.Model.UseMMap),
		zap.Bool("use_mlock", cfg.Model.UseMlock))

	loadStart := time.Now()
	model := s.eng.LoadModel(cfg.ModelPath, cfg.Model)
	loadDuration := time.Since(loadStart)

	if model == nil {
		releaseBackend(s.eng)
		if s.eng == defaultEngine && !backendAvailable {
			log.Error("llama.cpp is not linked into this build")
			return nil, opError("loadModel", -1, ErrBackendUnavailable, "cannot load %s", cfg.ModelPath)
		}
		log.Error("failed to load model", zap.Duration("load_duration", loadDuration))
		return nil, opError("loadModel", -1, ErrModelLoadFailed, "failed to load model from %s", cfg.ModelPath)
	}
	log.Info("model loaded", logging.TimingFields("load_model", loadStart)...)

	log.Info("creating context",
		zap.Int("n_ctx", cfg.Context.ContextSize),
		zap.Int("n_batch", cfg.Context.BatchSize),
		zap.Int("n_threads", cfg.Context.NumThreads),
		zap.Int("n_threads_batch", cfg.Context.NumThreadsBatch))

	ctxStart := time.Now()
	nctx := model.NewContext(cfg.Context)
	ctxDuration := time.Since(ctxStart)

	if nctx == nil {
		log.Error("failed to create context", zap.Duration("context_duration", ctxDuration))
		model.Free()
		releaseBackend(s.eng)
		return nil, opError("createContext", -1, ErrContextCreateFailed,
			"n_ctx=%d n_batch=%d", cfg.Context.ContextSize, cfg.Context.BatchSize)
	}
	log.Info("context created", logging.TimingFields("create_context", ctxStart)...)

	s.model = model
	s.ctx = nctx
	s.sampler = model.NewSampler(cfg.Sampler)
	log.Debug("sampler chain created",
		zap.Float32("temperature", cfg.Sampler.Temperature),
		zap.Int("top_k", cfg.Sampler.TopK),
		zap.Float32("top_p", cfg.Sampler.TopP),
		zap.Uint32("seed", cfg.Sampler.Seed))

	s.info = ModelInfo{
		Path:         cfg.ModelPath,
		Name:         ExtractModelName(cfg.ModelPath),
		Size:         size,
		ContextSize:  nctx.ContextSize(),
		LoadDuration: loadDuration,
		LoadedAt:     time.Now(),
	}

	log.Info("llama session ready",
		zap.String("model", s.info.Name),
		zap.Int("n_ctx", s.info.ContextSize),
		zap.Int64("init_ms", (loadDuration+ctxDuration).Milliseconds()),
		zap.Duration("elapsed", time.Since(start)))

	return s, nil
}

// probeModelFile opens the model read-only and returns its size.
func probeModelFile(path string) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("model path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// Generate runs one prompt through the model and returns up to maxTokens
// tokens of text. The inference context is recreated first, so every call
// starts from an empty KV-cache.
//
// When the loop stops early on a piece or decode failure, or because ctx was
// canceled, the partial text is returned with a nil error and StopReason
// explains why.
func (s *Session) Generate(ctx context.Context, prompt string, maxTokens int) (*GenerateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	genID := uuid.NewString()
	log := s.logger.With(zap.String("generation_id", genID))

	if s.closed || s.model == nil {
		return nil, opError("generate", -1, ErrSessionClosed, "generate called on a closed session")
	}

	start := time.Now()
	result, err := s.generate(ctx, log, prompt, maxTokens)
	elapsed := time.Since(start)

	s.generations.Add(1)
	s.totalDuration.Add(int64(elapsed))
	s.lastGeneration.Store(time.Now().UnixNano())

	if err != nil {
		s.errorCount.Add(1)
		log.Error("generation failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, err
	}

	result.GenerationID = genID
	s.promptTokens.Add(int64(result.PromptTokens))
	s.generatedTokens.Add(int64(result.GeneratedTokens))
	return result, nil
}

func (s *Session) generate(ctx context.Context, log *zap.Logger, prompt string, maxTokens int) (*GenerateResult, error) {
	log.Info("generation started",
		zap.Int("max_tokens", maxTokens),
		zap.Int("prompt_bytes", len(prompt)),
		zap.String("prompt_preview", preview(prompt)))

	if err := s.resetContext(log); err != nil {
		return nil, err
	}

	// First pass sizes the buffer: llama_tokenize returns the negated length.
	nPrompt := -s.model.Tokenize(prompt, nil, true, true)
	if nPrompt <= 0 {
		return nil, opError("tokenize", nPrompt, ErrTokenizeFailed, "prompt of %d bytes gave %d tokens", len(prompt), nPrompt)
	}

	nCtx := s.ctx.ContextSize()
	budget := maxTokens
	if budget > nCtx-nPrompt {
		budget = nCtx - nPrompt - s.cfg.ContextMargin
		log.Warn("generation budget clamped to context window",
			zap.Int("requested_max_tokens", maxTokens),
			zap.Int("max_tokens", budget),
			zap.Int("prompt_tokens", nPrompt),
			zap.Int("n_ctx", nCtx))
		if budget < 1 {
			return nil, opError("generate", -1, ErrPromptTooLong,
				"prompt uses %d of %d tokens", nPrompt, nCtx)
		}
	}

	tokens := make([]Token, nPrompt)
	actual := s.model.Tokenize(prompt, tokens, true, true)
	if actual != nPrompt {
		log.Warn("token count mismatch", zap.Int("expected", nPrompt), zap.Int("actual", actual))
		if actual > 0 && actual < nPrompt {
			tokens = tokens[:actual]
		}
	}

	log.Debug("prompt tokenized",
		append(logging.TokenFields(len(tokens), budget, nCtx),
			zap.Int32s("first_tokens", leadingTokens(tokens, logTokenCount)))...)

	decodeStart := time.Now()
	if rc := s.ctx.Decode(tokens); rc != 0 {
		return nil, opError("decode", rc, ErrDecodeFailed, "prompt batch of %d tokens rejected", len(tokens))
	}
	promptDecode := time.Since(decodeStart)
	log.Debug("prompt decoded", zap.Duration("prompt_decode", promptDecode))

	var out strings.Builder
	out.Grow(min(budget, nCtx) * 4)
	piece := make([]byte, s.cfg.PieceBufferSize)
	stop := StopMaxTokens
	decoded := 0

	genStart := time.Now()
	for i := 0; i < budget; i++ {
		if ctx.Err() != nil {
			stop = StopCanceled
			log.Warn("generation canceled", zap.Int("position", i), zap.Error(ctx.Err()))
			break
		}
		if i%progressInterval == 0 {
			log.Debug("generation progress", zap.Int("generated", i), zap.Int("max_tokens", budget))
		}

		tok := s.sampler.Sample(s.ctx)
		if s.model.IsEOG(tok) {
			stop = StopEndOfGeneration
			log.Debug("end of generation token", zap.Int("position", i))
			break
		}

		n := s.model.TokenToPiece(tok, piece)
		if n < 0 || n > len(piece) {
			stop = StopPieceError
			log.Error("token to piece failed", zap.Int("position", i), zap.Int32("token", int32(tok)), zap.Int("code", n))
			break
		}
		out.Write(piece[:n])

		if rc := s.ctx.Decode([]Token{tok}); rc != 0 {
			stop = StopDecodeError
			log.Error("decode failed", zap.Int("position", i), zap.Int("code", rc))
			break
		}
		decoded++
	}
	generation := time.Since(genStart)

	tps := tokensPerSecond(decoded, generation)
	result := &GenerateResult{
		Text:               out.String(),
		PromptTokens:       len(tokens),
		GeneratedTokens:    decoded,
		RequestedMaxTokens: maxTokens,
		MaxTokens:          budget,
		StopReason:         stop,
		PromptDecode:       promptDecode,
		Generation:         generation,
		TokensPerSecond:    tps,
		Speed:              RateSpeed(tps),
	}

	metrics := logging.GenerationFields(logging.GenerationMetrics{
		ModelName:       s.info.Name,
		PromptTokens:    result.PromptTokens,
		GeneratedTokens: result.GeneratedTokens,
		MaxTokens:       result.MaxTokens,
		StopReason:      string(result.StopReason),
		PromptDecode:    result.PromptDecode,
		Generation:      result.Generation,
		TokensPerSecond: result.TokensPerSecond,
		Speed:           string(result.Speed),
		ResultBytes:     len(result.Text),
	})
	resultPreview := zap.String("result_preview", preview(result.Text))
	if result.Speed == SpeedVerySlow && decoded > 0 {
		log.Warn("generation complete", metrics, resultPreview)
	} else {
		log.Info("generation complete", metrics, resultPreview)
	}

	return result, nil
}

// resetContext frees the current context and creates a new one with the
// session's parameters.
func (s *Session) resetContext(log *zap.Logger) error {
	if s.ctx != nil {
		s.ctx.Free()
		s.ctx = nil
	}

	nctx := s.model.NewContext(s.cfg.Context)
	if nctx == nil {
		log.Error("failed to recreate context")
		return opError("resetContext", -1, ErrContextResetFailed,
			"n_ctx=%d n_batch=%d", s.cfg.Context.ContextSize, s.cfg.Context.BatchSize)
	}
	s.ctx = nctx

	log.Debug("context recreated", zap.Int("n_ctx", nctx.ContextSize()), zap.Int("n_batch", nctx.BatchSize()))
	return nil
}

// Close frees the sampler, context and model in that order and releases the
// backend. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.sampler != nil {
		s.sampler.Free()
		s.sampler = nil
	}
	if s.ctx != nil {
		s.ctx.Free()
		s.ctx = nil
	}
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	releaseBackend(s.eng)

	s.logger.Info("llama session closed",
		zap.String("model", s.info.Name),
		zap.Int64("generations", s.generations.Load()))
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Info returns details about the loaded model.
func (s *Session) Info() ModelInfo {
	return s.info
}

// Stats returns cumulative statistics. It does not wait for a running Generate.
func (s *Session) Stats() Stats {
	st := Stats{
		Generations:     s.generations.Load(),
		PromptTokens:    s.promptTokens.Load(),
		GeneratedTokens: s.generatedTokens.Load(),
		Errors:          s.errorCount.Load(),
		TotalDuration:   time.Duration(s.totalDuration.Load()),
	}
	if ns := s.lastGeneration.Load(); ns != 0 {
		st.LastGeneration = time.Unix(0, ns)
	}
	return st
}

// leadingTokens returns the first n token ids, padded with -1.
func leadingTokens(tokens []Token, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		if i < len(tokens) {
			out[i] = int32(tokens[i])
		} else {
			out[i] = -1
		}
	}
	return out
}

// preview truncates s to previewLength bytes for logging without splitting a rune.
func preview(s string) string {
	if len(s) <= previewLength {
		return s
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
