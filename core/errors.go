package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeConfigFileMissing = "CONFIG_FILE_MISSING"
	ErrCodeInvalidConfigFile = "INVALID_CONFIG_FILE"
	ErrCodeMissingConfig     = "MISSING_CONFIG"
	ErrCodeOutOfRange        = "OUT_OF_RANGE"
)

// ErrConfigFileMissing returns an error for a LLAMA_CONFIG_FILE that does not exist.
func ErrConfigFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Fix LLAMA_CONFIG_FILE or unset it to use environment variables only",
	}
}

// ErrInvalidConfigFile returns an error for a YAML file that does not parse.
func ErrInvalidConfigFile(path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidConfigFile,
		Message: fmt.Sprintf("Invalid configuration file %s: %s", path, reason),
		Action:  "Check the file is valid YAML with the documented keys",
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your environment or .env file", varName),
	}
}

// ErrOutOfRange returns an error for a value outside its allowed range.
func ErrOutOfRange(varName, value, allowed string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeOutOfRange,
		Message: fmt.Sprintf("%s=%s is out of range", varName, value),
		Action:  fmt.Sprintf("Set %s to a value in %s", varName, allowed),
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
