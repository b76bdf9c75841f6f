package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ComputeSHA256 returns the lowercase hex SHA-256 of the file at path.
// Model files run to gigabytes, so the file is streamed.
func ComputeSHA256(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read file %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum reports whether the file's SHA-256 equals expected.
// expected is compared case-insensitively and must be 64 hex characters.
func VerifyChecksum(path, expected string) (bool, error) {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if len(expected) != sha256.Size*2 {
		return false, fmt.Errorf("expected hash must be %d hex characters, got %d", sha256.Size*2, len(expected))
	}
	if _, err := hex.DecodeString(expected); err != nil {
		return false, fmt.Errorf("expected hash is not hex: %w", err)
	}

	actual, err := ComputeSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}
