package llamaruntime

import "sync"

// Engine is the seam between Session and the native library. The default
// engine talks to llama.cpp through cgo; builds without cgo get a stub, and
// tests plug in an in-memory engine with WithEngine.
type Engine interface {
	BackendInit()
	BackendFree()

	// LoadModel returns nil when the library rejects the file.
	LoadModel(path string, params ModelParams) ModelHandle
}

// ModelHandle wraps llama_model together with its vocabulary.
type ModelHandle interface {
	// NewContext returns nil when the library cannot allocate a context.
	NewContext(params ContextParams) ContextHandle

	NewSampler(params SamplerParams) SamplerHandle

	// Tokenize follows llama_tokenize: it returns the token count, or the
	// negated required length when buf is too small.
	Tokenize(text string, buf []Token, addSpecial, parseSpecial bool) int

	IsEOG(token Token) bool

	// TokenToPiece writes the token's text into buf and returns the byte
	// count, negative on failure.
	TokenToPiece(token Token, buf []byte) int

	Free()
}

// ContextHandle wraps llama_context.
type ContextHandle interface {
	ContextSize() int
	BatchSize() int

	// Decode evaluates tokens as one batch and returns llama_decode's code.
	Decode(tokens []Token) int

	Free()
}

// SamplerHandle wraps a llama_sampler chain.
type SamplerHandle interface {
	// Sample draws a token from the last logits of ctx.
	Sample(ctx ContextHandle) Token
	Free()
}

// backendRefs counts open sessions per engine so BackendInit and
// BackendFree run once for the first and last session.
var backendRefs = struct {
	sync.Mutex
	n map[Engine]int
}{n: make(map[Engine]int)}

func acquireBackend(e Engine) {
	backendRefs.Lock()
	defer backendRefs.Unlock()

	if backendRefs.n[e] == 0 {
		e.BackendInit()
	}
	backendRefs.n[e]++
}

func releaseBackend(e Engine) {
	backendRefs.Lock()
	defer backendRefs.Unlock()

	if backendRefs.n[e] <= 0 {
		return
	}
	backendRefs.n[e]--
	if backendRefs.n[e] == 0 {
		delete(backendRefs.n, e)
		e.BackendFree()
	}
}

// BackendAvailable reports whether this build links llama.cpp.
func BackendAvailable() bool {
	return backendAvailable
}
