// Package commands implements the llamabridge CLI.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"llama_bridge/bridge"
	"llama_bridge/core"
	"llama_bridge/llamaruntime"
	"llama_bridge/logging"
)

// exitError carries a process exit code alongside the error to print.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return core.ExitCodeSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return core.ExitCodeError
}

// NewRootCmd builds the command tree. opts are passed to every session the
// commands open.
func NewRootCmd(opts ...llamaruntime.Option) *cobra.Command {
	root := &cobra.Command{
		Use:   "llamabridge",
		Short: "Run a local GGUF model through the llama bridge",
		Long: `llamabridge exercises the same init / generate / destroy lifecycle
that the shared library exposes to foreign callers.

Configuration comes from LLAMA_* environment variables, an optional .env
file and an optional YAML file (--config or LLAMA_CONFIG_FILE).

Examples:
  # Check that the configured model can be loaded
  llamabridge check --load

  # One-shot generation
  llamabridge generate -m models/qwen2.5-0.5b-instruct-q4_k_m.gguf -p "Hello" -n 64

  # Interactive prompt loop over one handle
  llamabridge repl -m models/qwen2.5-0.5b-instruct-q4_k_m.gguf`,
		Version:       core.GetVersionInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				return os.Setenv("LLAMA_CONFIG_FILE", path)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML config file (default $LLAMA_CONFIG_FILE)")
	flags.String("log-level", "", "log level: debug, info, warn, error (default $LLAMA_LOG_LEVEL)")
	flags.Bool("stats", false, "print token counts and timing after each generation")

	root.AddCommand(
		newGenerateCmd(opts),
		newReplCmd(opts),
		newInspectCmd(),
		newCheckCmd(opts),
	)
	return root
}

// Execute runs the CLI against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// runtimeEnv is what the session-opening commands share.
type runtimeEnv struct {
	cfg    *core.Config
	logger *logging.Logger
	bridge *bridge.Bridge
}

// setup loads configuration and builds the logger and bridge. Console logs
// go to the command's stderr so stdout carries only generated text.
func setup(cmd *cobra.Command, opts []llamaruntime.Option) (*runtimeEnv, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, withExitCode(core.ExitCodeError, err)
	}

	logger, err := logging.NewLogger(logging.Options{
		Development: cfg.DevMode,
		Level:       logging.ParseLevel(cfg.LogLevel, zapcore.InfoLevel),
		FilePath:    cfg.LogFile,
		File:        logging.DefaultFileWriterConfig(),
		Console:     zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())),
	})
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		logger.SetLevel(logging.ParseLevel(level, logger.Level()))
	}
	logger = logger.Named(cmd.Name())

	logger.Debug("configuration loaded",
		zap.String("model_path", cfg.ModelPath),
		zap.String("log_file", logger.LogFilePath()),
		zap.Int("ctx_size", cfg.ContextSize),
		zap.Int("threads", cfg.Threads),
		zap.Int("gpu_layers", cfg.GPULayers),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	return &runtimeEnv{
		cfg:    cfg,
		logger: logger,
		bridge: bridge.New(cfg, logger.Zap(), opts...),
	}, nil
}

// modelFlag returns --model, falling back to the configured path.
func modelFlag(cmd *cobra.Command, cfg *core.Config) (string, error) {
	if path, _ := cmd.Flags().GetString("model"); path != "" {
		return path, nil
	}
	if cfg == nil || !cfg.HasModel() {
		return "", core.ErrMissingConfig("LLAMA_MODEL_PATH")
	}
	return cfg.ModelPath, nil
}
