package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
	"llama_bridge/shutdown"
)

const shutdownTimeout = 10 * time.Second

func newGenerateCmd(opts []llamaruntime.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Load a model, generate once and release it",
		Long: `Run one init / generate / destroy cycle and print the generated text.

The prompt comes from --prompt or the positional arguments. Ctrl-C stops
generation at the next token and prints what was produced so far; a
second Ctrl-C exits immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("model", "m", "", "path to a .gguf model (default $LLAMA_MODEL_PATH)")
	flags.StringP("prompt", "p", "", "prompt text")
	flags.IntP("max-tokens", "n", 0, "maximum tokens to generate (default $LLAMA_MAX_TOKENS)")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string, opts []llamaruntime.Option) error {
	prompt, _ := cmd.Flags().GetString("prompt")
	if prompt == "" {
		prompt = strings.Join(args, " ")
	}
	if prompt == "" {
		return errors.New("no prompt: pass --prompt or positional text")
	}

	env, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	modelPath, err := modelFlag(cmd, env.cfg)
	if err != nil {
		return err
	}
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	if maxTokens <= 0 {
		maxTokens = env.cfg.MaxTokens
	}

	mgr := newManager(env)
	mgr.Start()
	defer mgr.Shutdown()

	h, err := env.bridge.Open(modelPath)
	if err != nil {
		return withExitCode(core.ExitCodeModelUnavailable, err)
	}
	defer env.bridge.Destroy(int64(h))

	var res *llamaruntime.GenerateResult
	err = mgr.WrapOperation(cmd.Context(), "generate", func(ctx context.Context) error {
		var genErr error
		res, genErr = env.bridge.GenerateContext(ctx, int64(h), prompt, maxTokens)
		return genErr
	})
	if err != nil {
		if errors.Is(err, shutdown.ErrTrackerClosed) || errors.Is(err, context.Canceled) {
			return withExitCode(interruptedCode(mgr), err)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		printResult(cmd.ErrOrStderr(), res)
	}

	if res.StopReason == llamaruntime.StopCanceled {
		return withExitCode(interruptedCode(mgr), errors.New("generation interrupted"))
	}
	return nil
}

// newManager returns a shutdown manager that closes env's sessions and
// flushes its log.
func newManager(env *runtimeEnv) *shutdown.Manager {
	zl := env.logger.Zap()
	mgr := shutdown.NewManager(zl, shutdown.WithTimeout(shutdownTimeout))
	mgr.Register("sessions", shutdown.PrioritySessions, shutdown.CloseSessions(zl, env.bridge))
	mgr.Register("logger", shutdown.PriorityLogger, shutdown.SyncLogger(zl))
	zl.Debug("shutdown handlers registered", zap.Strings("cleanups", mgr.RegisteredCleanups()))
	return mgr
}

// interruptedCode is the exit code for a generation that was cut short.
func interruptedCode(mgr *shutdown.Manager) int {
	if code := mgr.ExitCode(); code != core.ExitCodeSuccess {
		return code
	}
	return core.ExitCodeError
}
