package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
)

func newReplCmd(opts []llamaruntime.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Generate for each line read from stdin using one model handle",
		Long: `Load the model once and answer one prompt per input line. Each prompt
runs in a fresh inference context, so earlier lines are not remembered.

Commands:
  /stats   print session totals
  /quit    exit (also EOF)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("model", "m", "", "path to a .gguf model (default $LLAMA_MODEL_PATH)")
	flags.IntP("max-tokens", "n", 0, "maximum tokens per answer (default $LLAMA_MAX_TOKENS)")
	return cmd
}

func runRepl(cmd *cobra.Command, opts []llamaruntime.Option) error {
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
	showStats, _ := cmd.Flags().GetBool("stats")

	mgr := newManager(env)
	mgr.Start()
	defer mgr.Shutdown()

	h, err := env.bridge.Open(modelPath)
	if err != nil {
		return withExitCode(core.ExitCodeModelUnavailable, err)
	}
	defer env.bridge.Destroy(int64(h))

	session, err := env.bridge.Session(int64(h))
	if err != nil {
		return err
	}
	info := session.Info()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	okColor.Fprintf(errOut, "%s loaded", info.Name)
	dim.Fprintf(errOut, " (ctx %d). /quit to exit.\n", info.ContextSize)

	lines, readErr := readLines(mgr.Context(), cmd.InOrStdin())
	for {
		label.Fprint(errOut, "> ")

		var line string
		select {
		case <-mgr.Context().Done():
			fmt.Fprintln(errOut)
			return withExitCode(interruptedCode(mgr), errors.New("interrupted"))
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(errOut)
				return readErr()
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/stats":
			printStats(errOut, session.Stats())
			continue
		}

		var res *llamaruntime.GenerateResult
		err := mgr.WrapOperation(cmd.Context(), "repl", func(ctx context.Context) error {
			var genErr error
			res, genErr = env.bridge.GenerateContext(ctx, int64(h), line, maxTokens)
			return genErr
		})
		switch {
		case err == nil:
		case errors.Is(err, llamaruntime.ErrPromptTooLong):
			warn.Fprintln(errOut, "prompt too long for the context window")
			continue
		case mgr.IsShuttingDown():
			return withExitCode(interruptedCode(mgr), err)
		default:
			return err
		}

		fmt.Fprintln(out, res.Text)
		if showStats {
			printResult(errOut, res)
		}
		if res.StopReason == llamaruntime.StopCanceled {
			return withExitCode(interruptedCode(mgr), errors.New("generation interrupted"))
		}
	}
}

// readLines scans r on its own goroutine so the prompt loop can also wait
// for a signal. The channel is closed at EOF; readErr then reports any scan
// error. A reader blocked in Read is abandoned when ctx ends.
func readLines(ctx context.Context, r io.Reader) (<-chan string, func() error) {
	lines := make(chan string)
	var scanErr error

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()

	return lines, func() error { return scanErr }
}
