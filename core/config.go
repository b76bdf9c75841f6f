package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the bridge and its CLI.
type Config struct {
	// Model
	ModelPath string `yaml:"model_path" toml:"model_path" env:"LLAMA_MODEL_PATH"`
	GPULayers int    `yaml:"gpu_layers" toml:"gpu_layers" env:"LLAMA_GPU_LAYERS" validate:"gte=-1"`
	UseMMap   bool   `yaml:"use_mmap" toml:"use_mmap" env:"LLAMA_USE_MMAP"`
	UseMlock  bool   `yaml:"use_mlock" toml:"use_mlock" env:"LLAMA_USE_MLOCK"`

	// Context
	ContextSize   int `yaml:"context_size" toml:"context_size" env:"LLAMA_CTX_SIZE" validate:"gte=256,lte=131072"`
	BatchSize     int `yaml:"batch_size" toml:"batch_size" env:"LLAMA_BATCH_SIZE" validate:"gte=1,ltefield=ContextSize"`
	Threads       int `yaml:"threads" toml:"threads" env:"LLAMA_THREADS" validate:"gte=1"`
	ThreadsBatch  int `yaml:"threads_batch" toml:"threads_batch" env:"LLAMA_THREADS_BATCH" validate:"gte=1"`
	ContextMargin int `yaml:"context_margin" toml:"context_margin" env:"LLAMA_CTX_MARGIN" validate:"gte=0,ltfield=ContextSize"`

	// Sampler chain
	Temperature float64 `yaml:"temperature" toml:"temperature" env:"LLAMA_TEMPERATURE" validate:"gte=0"`
	TopK        int     `yaml:"top_k" toml:"top_k" env:"LLAMA_TOP_K" validate:"gte=0"`
	TopP        float64 `yaml:"top_p" toml:"top_p" env:"LLAMA_TOP_P" validate:"gt=0,lte=1"`
	Seed        int64   `yaml:"seed" toml:"seed" env:"LLAMA_SEED" validate:"gte=0,lte=4294967295"`

	// Generation
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens" env:"LLAMA_MAX_TOKENS" validate:"gte=1"`

	// Logging
	LogFile  string `yaml:"log_file" toml:"log_file" env:"LLAMA_LOG_FILE"`
	LogLevel string `yaml:"log_level" toml:"log_level" env:"LLAMA_LOG_LEVEL"`
	DevMode  bool   `yaml:"dev_mode" toml:"dev_mode" env:"DEV_MODE"`
}

// DefaultSeed asks the library to pick a random seed.
const DefaultSeed int64 = 0xFFFFFFFF

// DefaultConfig returns the settings the bridge runs with when nothing is configured.
// CPU only, mmap on, 2048-token window.
func DefaultConfig() *Config {
	return &Config{
		GPULayers:     0,
		UseMMap:       true,
		UseMlock:      false,
		ContextSize:   2048,
		BatchSize:     512,
		Threads:       4,
		ThreadsBatch:  4,
		ContextMargin: 10,
		Temperature:   0.8,
		TopK:          40,
		TopP:          0.95,
		Seed:          DefaultSeed,
		MaxTokens:     256,
		LogFile:       "llama_bridge.log",
		LogLevel:      "info",
	}
}

// LoadConfig builds a Config from defaults, an optional YAML or TOML file named by
// LLAMA_CONFIG_FILE, and finally environment variable overrides.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("LLAMA_CONFIG_FILE"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays values from a config file onto c. Files ending in
// .toml are read as TOML, anything else as YAML. Keys absent from the file
// leave the current values untouched.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigFileMissing(path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return ErrInvalidConfigFile(path, err.Error())
	}
	return nil
}

// ApplyEnv overrides fields from LLAMA_* environment variables.
func (c *Config) ApplyEnv() {
	c.ModelPath = GetEnvOrDefault("LLAMA_MODEL_PATH", c.ModelPath)
	c.GPULayers = ParseIntEnv("LLAMA_GPU_LAYERS", c.GPULayers)
	c.UseMMap = ParseBoolEnv("LLAMA_USE_MMAP", c.UseMMap)
	c.UseMlock = ParseBoolEnv("LLAMA_USE_MLOCK", c.UseMlock)

	c.ContextSize = ParseIntEnv("LLAMA_CTX_SIZE", c.ContextSize)
	c.BatchSize = ParseIntEnv("LLAMA_BATCH_SIZE", c.BatchSize)
	c.Threads = ParseIntEnv("LLAMA_THREADS", c.Threads)
	c.ThreadsBatch = ParseIntEnv("LLAMA_THREADS_BATCH", c.ThreadsBatch)
	c.ContextMargin = ParseIntEnv("LLAMA_CTX_MARGIN", c.ContextMargin)

	c.Temperature = ParseFloat64Env("LLAMA_TEMPERATURE", c.Temperature)
	c.TopK = ParseIntEnv("LLAMA_TOP_K", c.TopK)
	c.TopP = ParseFloat64Env("LLAMA_TOP_P", c.TopP)
	c.Seed = ParseInt64Env("LLAMA_SEED", c.Seed)

	c.MaxTokens = ParseIntEnv("LLAMA_MAX_TOKENS", c.MaxTokens)

	c.LogFile = GetEnvOrDefault("LLAMA_LOG_FILE", c.LogFile)
	c.LogLevel = GetEnvOrDefault("LLAMA_LOG_LEVEL", c.LogLevel)
	c.DevMode = ParseBoolEnv("DEV_MODE", c.DevMode)
}

// HasModel reports whether a model path has been configured.
func (c *Config) HasModel() bool {
	return c.ModelPath != ""
}
