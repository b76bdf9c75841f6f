// Package llamaruntime provides Go bindings to llama.cpp for local LLM inference.
package llamaruntime

import (
	"errors"
	"fmt"
)

// LlamaError represents an error from llama.cpp operations.
// It records the operation that failed, the return code from the C layer
// (or -1 when the library returned a nil pointer), and a message.
type LlamaError struct {
	Op      string // Operation that failed (e.g., "loadModel", "decode")
	Code    int    // Return code from C layer (0 = success, non-zero = error)
	Message string // Human-readable error message
	Err     error  // Wrapped underlying error (if any)
}

// Error implements the error interface.
func (e *LlamaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llama.cpp %s: %s (code: %d): %v", e.Op, e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("llama.cpp %s: %s (code: %d)", e.Op, e.Message, e.Code)
}

// Unwrap returns the wrapped error, allowing use with errors.Is and errors.As.
func (e *LlamaError) Unwrap() error {
	return e.Err
}

// Sentinel errors for common failure conditions.
// These are used for error checking with errors.Is().
var (
	// ErrModelNotFound indicates the model file could not be opened.
	ErrModelNotFound = errors.New("model file not found")

	// ErrModelLoadFailed indicates the model file exists but llama.cpp rejected it.
	ErrModelLoadFailed = errors.New("failed to load model")

	// ErrContextCreateFailed indicates the first inference context could not be created.
	ErrContextCreateFailed = errors.New("failed to create inference context")

	// ErrContextResetFailed indicates the per-call context could not be recreated.
	ErrContextResetFailed = errors.New("failed to recreate inference context")

	// ErrTokenizeFailed indicates the prompt produced no tokens.
	ErrTokenizeFailed = errors.New("failed to tokenize prompt")

	// ErrPromptTooLong indicates the prompt leaves no room in the context window.
	ErrPromptTooLong = errors.New("prompt too long for context window")

	// ErrDecodeFailed indicates llama_decode rejected the prompt batch.
	ErrDecodeFailed = errors.New("failed to decode prompt")

	// ErrSessionClosed indicates the session has already been closed.
	ErrSessionClosed = errors.New("session is closed")

	// ErrInvalidHandle indicates a handle of zero or one that is not registered.
	ErrInvalidHandle = errors.New("invalid session handle")

	// ErrBackendUnavailable indicates the binary was built without llama.cpp.
	ErrBackendUnavailable = errors.New("llama.cpp backend not available in this build")
)

// opError builds a LlamaError wrapping a sentinel.
func opError(op string, code int, sentinel error, format string, args ...interface{}) *LlamaError {
	return &LlamaError{
		Op:      op,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}
