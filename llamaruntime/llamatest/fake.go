// Package llamatest provides an in-memory llamaruntime.Engine for tests that
// need the full session lifecycle without llama.cpp.
package llamatest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"llama_bridge/llamaruntime"
)

// Token ids with fixed meaning in the fake vocabulary.
const (
	BOS        llamaruntime.Token = 1
	EOG        llamaruntime.Token = 2
	BadPiece   llamaruntime.Token = 3
	BadDecode  llamaruntime.Token = 4
	FirstWord  llamaruntime.Token = 100
	PromptBase llamaruntime.Token = 1000
)

// Engine is a scripted llamaruntime.Engine. Tokenization maps each prompt
// byte to one token after a BOS. Every new context replays Script through
// the sampler and then returns EOG.
type Engine struct {
	mu sync.Mutex

	inits int
	frees int

	// FailLoad makes LoadModel return nil.
	FailLoad bool
	// FailContexts makes every NewContext call fail.
	FailContexts bool
	// ContextLimit caps how many contexts a model can create; 0 means unlimited.
	ContextLimit int
	// PromptDecodeRC is returned for multi-token decodes.
	PromptDecodeRC int
	// TokenizeDrop shortens the filling tokenize pass to simulate a count mismatch.
	TokenizeDrop int
	// EmptyTokenize makes the sizing pass report zero tokens.
	EmptyTokenize bool

	Script []llamaruntime.Token
	Pieces map[llamaruntime.Token]string

	// OnSample, when set, runs before each sample with the number of
	// tokens already sampled in the current context.
	OnSample func(sampled int)

	models []*Model
}

// NewEngine returns an Engine whose script emits words in order.
func NewEngine(words ...string) *Engine {
	e := &Engine{Pieces: make(map[llamaruntime.Token]string)}
	for i, w := range words {
		tok := FirstWord + llamaruntime.Token(i)
		e.Script = append(e.Script, tok)
		e.Pieces[tok] = w
	}
	return e
}

func (e *Engine) BackendInit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inits++
}

func (e *Engine) BackendFree() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frees++
}

func (e *Engine) LoadModel(path string, params llamaruntime.ModelParams) llamaruntime.ModelHandle {
	if e.FailLoad {
		return nil
	}
	m := &Model{eng: e, Path: path, Params: params}
	e.mu.Lock()
	e.models = append(e.models, m)
	e.mu.Unlock()
	return m
}

// BackendCounts returns how often BackendInit and BackendFree ran.
func (e *Engine) BackendCounts() (inits, frees int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits, e.frees
}

// Models returns every model loaded so far.
func (e *Engine) Models() []*Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Model(nil), e.models...)
}

// Model is a fake llamaruntime.ModelHandle.
type Model struct {
	eng    *Engine
	Path   string
	Params llamaruntime.ModelParams

	Freed    bool
	Contexts []*Context
	Samplers []*Sampler

	// FreeLog, when set, records "sampler", "context" and "model" as each is freed.
	FreeLog *[]string
}

func (m *Model) NewContext(params llamaruntime.ContextParams) llamaruntime.ContextHandle {
	if m.eng.FailContexts {
		return nil
	}
	if m.eng.ContextLimit > 0 && len(m.Contexts) >= m.eng.ContextLimit {
		return nil
	}
	c := &Context{model: m, Params: params}
	m.Contexts = append(m.Contexts, c)
	return c
}

func (m *Model) NewSampler(params llamaruntime.SamplerParams) llamaruntime.SamplerHandle {
	s := &Sampler{model: m, Params: params}
	m.Samplers = append(m.Samplers, s)
	return s
}

func (m *Model) Tokenize(text string, buf []llamaruntime.Token, addSpecial, parseSpecial bool) int {
	if m.eng.EmptyTokenize {
		return 0
	}
	n := len(text)
	if addSpecial {
		n++
	}
	if len(buf) < n {
		return -n
	}

	i := 0
	if addSpecial {
		buf[0] = BOS
		i = 1
	}
	for j := 0; j < len(text); j++ {
		buf[i+j] = PromptBase + llamaruntime.Token(text[j])
	}
	return n - m.eng.TokenizeDrop
}

func (m *Model) IsEOG(token llamaruntime.Token) bool {
	return token == EOG
}

func (m *Model) TokenToPiece(token llamaruntime.Token, buf []byte) int {
	if token == BadPiece {
		return -1
	}
	piece, ok := m.eng.Pieces[token]
	if !ok {
		piece = "?"
	}
	if len(piece) > len(buf) {
		return -len(piece)
	}
	return copy(buf, piece)
}

func (m *Model) Free() {
	m.Freed = true
	m.record("model")
}

func (m *Model) record(what string) {
	if m.FreeLog != nil {
		*m.FreeLog = append(*m.FreeLog, what)
	}
}

// Context is a fake llamaruntime.ContextHandle.
type Context struct {
	model  *Model
	Params llamaruntime.ContextParams

	Freed   bool
	Batches [][]llamaruntime.Token
	sampled int
}

func (c *Context) ContextSize() int { return c.Params.ContextSize }
func (c *Context) BatchSize() int   { return c.Params.BatchSize }

func (c *Context) Decode(tokens []llamaruntime.Token) int {
	c.Batches = append(c.Batches, append([]llamaruntime.Token(nil), tokens...))
	if len(tokens) > 1 {
		return c.model.eng.PromptDecodeRC
	}
	if len(tokens) == 1 && tokens[0] == BadDecode {
		return 1
	}
	return 0
}

func (c *Context) Free() {
	c.Freed = true
	c.model.record("context")
}

// Sampler is a fake llamaruntime.SamplerHandle.
type Sampler struct {
	model  *Model
	Params llamaruntime.SamplerParams
	Freed  bool
}

// Sample replays the script from the start of each context.
func (s *Sampler) Sample(ctx llamaruntime.ContextHandle) llamaruntime.Token {
	c := ctx.(*Context)
	if hook := s.model.eng.OnSample; hook != nil {
		hook(c.sampled)
	}
	script := s.model.eng.Script
	if c.sampled >= len(script) {
		return EOG
	}
	tok := script[c.sampled]
	c.sampled++
	return tok
}

func (s *Sampler) Free() {
	s.Freed = true
	s.model.record("sampler")
}

// WriteModel writes a minimal GGUF v3 file into dir and returns its path.
func WriteModel(t testing.TB, dir, name string) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("GGUF")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	binary.Write(&buf, binary.LittleEndian, uint64(4))
	binary.Write(&buf, binary.LittleEndian, uint64(2))
	buf.Write(make([]byte, 64))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}
