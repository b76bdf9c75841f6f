// Package llamaruntime provides Go bindings to llama.cpp for local LLM inference.
// This file contains atom functions for model path resolution and validation.
//
// These are pure functions with no dependencies on the native library.
package llamaruntime

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// ggufMagic is the first four bytes of every GGUF file.
const ggufMagic = "GGUF"

// =============================================================================
// Model Path Validation Atoms
// =============================================================================

// ValidateModelPath checks if a model path points to a valid GGUF file.
// Returns nil if valid, or an error describing what's wrong.
//
// Validation checks:
// 1. Path is not empty
// 2. File exists and is not a directory
// 3. File has .gguf extension
// 4. File starts with the GGUF magic
func ValidateModelPath(path string) error {
	if path == "" {
		return fmt.Errorf("model path is empty")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access model file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("model path is a directory, not a file: %s", path)
	}

	if !IsGGUFFile(path) {
		return fmt.Errorf("model file does not have .gguf extension: %s", path)
	}

	if _, err := ReadModelHeader(path); err != nil {
		return err
	}
	return nil
}

// IsGGUFFile returns true if the path has a .gguf extension.
func IsGGUFFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gguf")
}

// ExtractModelName extracts the model name from a file path.
// For "models/qwen2.5-0.5b-instruct-q4_k_m.gguf", returns "qwen2.5-0.5b-instruct-q4_k_m".
func ExtractModelName(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// GGUF Header
// =============================================================================

// ModelHeader is the fixed-size prefix of a GGUF file.
type ModelHeader struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

// ReadModelHeader reads and checks the GGUF magic, version and counts.
func ReadModelHeader(path string) (ModelHeader, error) {
	var h ModelHeader

	f, err := os.Open(path)
	if err != nil {
		return h, fmt.Errorf("cannot open model file: %w", err)
	}
	defer f.Close()

	magic := make([]byte, len(ggufMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return h, fmt.Errorf("cannot read model file header: %w", err)
	}
	if string(magic) != ggufMagic {
		return h, fmt.Errorf("invalid GGUF file: magic number mismatch (got %q)", string(magic))
	}

	// Older v1 files used 32-bit counts; only the version is trusted for them.
	if err := binary.Read(f, binary.LittleEndian, &h.Version); err != nil {
		return h, fmt.Errorf("cannot read GGUF version: %w", err)
	}
	if h.Version < 2 {
		return h, nil
	}
	if err := binary.Read(f, binary.LittleEndian, &h.TensorCount); err != nil {
		return h, fmt.Errorf("cannot read GGUF tensor count: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &h.KVCount); err != nil {
		return h, fmt.Errorf("cannot read GGUF metadata count: %w", err)
	}
	return h, nil
}

// ModelFile summarizes a model file on disk without loading it.
type ModelFile struct {
	Path   string
	Name   string
	Size   int64
	Header ModelHeader
}

// HumanSize formats Size with binary units, e.g. "379 MiB".
func (m ModelFile) HumanSize() string {
	return humanize.IBytes(uint64(m.Size))
}

// InspectModel validates path and returns its name, size and header.
func InspectModel(path string) (ModelFile, error) {
	if err := ValidateModelPath(path); err != nil {
		return ModelFile{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return ModelFile{}, fmt.Errorf("cannot access model file: %w", err)
	}
	header, err := ReadModelHeader(path)
	if err != nil {
		return ModelFile{}, err
	}

	return ModelFile{
		Path:   path,
		Name:   ExtractModelName(path),
		Size:   info.Size(),
		Header: header,
	}, nil
}
