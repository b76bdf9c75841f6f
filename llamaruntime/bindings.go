// Package llamaruntime provides Go bindings to llama.cpp for local LLM inference.
// This file contains CGo wrappers for the llama.cpp C API.
//
// Build Requirements:
// - llama.cpp headers in deps/llama.cpp/include or the system include path
// - libllama (.so/.a/.dll) in lib/ or the system library path
//
// Build Tags:
// - cgo: Requires CGo (enabled by default)
// - !nocgo: Excluded when nocgo tag is set (for testing without llama.cpp)
//
//go:build cgo && !nocgo

package llamaruntime

/*
#cgo CFLAGS: -I${SRCDIR}/../deps/llama.cpp/include -I${SRCDIR}/../deps/llama.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../lib -lllama -lggml -lm -lstdc++
#cgo linux LDFLAGS: -Wl,-rpath,${SRCDIR}/../lib
#cgo android LDFLAGS: -llog

#include <stdlib.h>
#include <stdbool.h>
#include <stdint.h>
#include "llama.h"
*/
import "C"

import (
	"runtime"
	"unsafe"
)

// cgoEngine is the production Engine backed by libllama.
type cgoEngine struct{}

var defaultEngine Engine = &cgoEngine{}

// backendAvailable reports whether this build can actually load models.
const backendAvailable = true

func (cgoEngine) BackendInit() { C.llama_backend_init() }
func (cgoEngine) BackendFree() { C.llama_backend_free() }

// LoadModel loads a GGUF model with the given offload and mapping options.
func (cgoEngine) LoadModel(path string, params ModelParams) ModelHandle {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	p := C.llama_model_default_params()
	p.n_gpu_layers = C.int32_t(params.NumGPULayers)
	p.use_mmap = C.bool(params.UseMMap)
	p.use_mlock = C.bool(params.UseMlock)

	ptr := C.llama_model_load_from_file(cPath, p)
	if ptr == nil {
		return nil
	}

	m := &cModel{ptr: ptr, vocab: C.llama_model_get_vocab(ptr)}

	// Set finalizer for automatic cleanup if Free() isn't called
	runtime.SetFinalizer(m, func(m *cModel) {
		m.Free()
	})
	return m
}

// cModel wraps a C llama_model pointer and its vocabulary.
type cModel struct {
	ptr   *C.struct_llama_model
	vocab *C.struct_llama_vocab
}

func (m *cModel) NewContext(params ContextParams) ContextHandle {
	if m.ptr == nil {
		return nil
	}

	p := C.llama_context_default_params()
	p.n_ctx = C.uint32_t(params.ContextSize)
	p.n_batch = C.uint32_t(params.BatchSize)
	p.n_threads = C.int32_t(params.NumThreads)
	p.n_threads_batch = C.int32_t(params.NumThreadsBatch)

	ptr := C.llama_init_from_model(m.ptr, p)
	if ptr == nil {
		return nil
	}

	c := &cContext{ptr: ptr}
	runtime.SetFinalizer(c, func(c *cContext) {
		c.Free()
	})
	return c
}

// NewSampler builds temp -> top-k -> top-p -> dist. The chain owns the
// individual samplers and frees them with itself.
func (m *cModel) NewSampler(params SamplerParams) SamplerHandle {
	chain := C.llama_sampler_chain_init(C.llama_sampler_chain_default_params())
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_temp(C.float(params.Temperature)))
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_top_k(C.int32_t(params.TopK)))
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_top_p(C.float(params.TopP), 1))
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_dist(C.uint32_t(params.Seed)))
	return &cSampler{ptr: chain}
}

func (m *cModel) Tokenize(text string, buf []Token, addSpecial, parseSpecial bool) int {
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	var out *C.llama_token
	if len(buf) > 0 {
		out = (*C.llama_token)(unsafe.Pointer(&buf[0]))
	}

	n := C.llama_tokenize(
		m.vocab,
		cText,
		C.int32_t(len(text)),
		out,
		C.int32_t(len(buf)),
		C.bool(addSpecial),
		C.bool(parseSpecial),
	)
	return int(n)
}

func (m *cModel) IsEOG(token Token) bool {
	return bool(C.llama_vocab_is_eog(m.vocab, C.llama_token(token)))
}

func (m *cModel) TokenToPiece(token Token, buf []byte) int {
	if len(buf) == 0 {
		return -1
	}
	n := C.llama_token_to_piece(
		m.vocab,
		C.llama_token(token),
		(*C.char)(unsafe.Pointer(&buf[0])),
		C.int32_t(len(buf)),
		0,    // lstrip
		true, // render special tokens
	)
	return int(n)
}

// Free releases the model. Safe to call multiple times.
func (m *cModel) Free() {
	if m.ptr != nil {
		C.llama_model_free(m.ptr)
		m.ptr = nil
		m.vocab = nil
		runtime.SetFinalizer(m, nil)
	}
}

// cContext wraps a C llama_context pointer.
type cContext struct {
	ptr *C.struct_llama_context
}

func (c *cContext) ContextSize() int {
	if c.ptr == nil {
		return 0
	}
	return int(C.llama_n_ctx(c.ptr))
}

func (c *cContext) BatchSize() int {
	if c.ptr == nil {
		return 0
	}
	return int(C.llama_n_batch(c.ptr))
}

// Decode copies tokens into C memory so the batch handed to llama_decode
// never points into the Go heap.
func (c *cContext) Decode(tokens []Token) int {
	if c.ptr == nil || len(tokens) == 0 {
		return -1
	}

	size := C.size_t(len(tokens)) * C.size_t(unsafe.Sizeof(C.llama_token(0)))
	cTokens := (*C.llama_token)(C.malloc(size))
	if cTokens == nil {
		return -1
	}
	defer C.free(unsafe.Pointer(cTokens))

	dst := unsafe.Slice(cTokens, len(tokens))
	for i, tok := range tokens {
		dst[i] = C.llama_token(tok)
	}

	batch := C.llama_batch_get_one(cTokens, C.int32_t(len(tokens)))
	return int(C.llama_decode(c.ptr, batch))
}

// Free releases the context. Safe to call multiple times.
func (c *cContext) Free() {
	if c.ptr != nil {
		C.llama_free(c.ptr)
		c.ptr = nil
		runtime.SetFinalizer(c, nil)
	}
}

// cSampler wraps a llama_sampler chain.
type cSampler struct {
	ptr *C.struct_llama_sampler
}

// Sample draws from the logits of the last evaluated token (index -1).
func (s *cSampler) Sample(ctx ContextHandle) Token {
	c, ok := ctx.(*cContext)
	if !ok || c.ptr == nil || s.ptr == nil {
		return -1
	}
	return Token(C.llama_sampler_sample(s.ptr, c.ptr, -1))
}

func (s *cSampler) Free() {
	if s.ptr != nil {
		C.llama_sampler_free(s.ptr)
		s.ptr = nil
	}
}
