package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"llama_bridge/core"
	"llama_bridge/core/validation"
	"llama_bridge/llamaruntime"
)

func newCheckCmd(opts []llamaruntime.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run preflight checks on configuration, model and backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("model", "m", "", "path to a .gguf model (default $LLAMA_MODEL_PATH)")
	flags.Bool("load", false, "also load and release the model")
	flags.Bool("fail-fast", false, "stop at the first failed check")
	flags.Duration("timeout", 2*time.Minute, "limit for the trial load")
	return cmd
}

func runCheck(cmd *cobra.Command, opts []llamaruntime.Option) error {
	modelPath, _ := cmd.Flags().GetString("model")
	load, _ := cmd.Flags().GetBool("load")
	failFast, _ := cmd.Flags().GetBool("fail-fast")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	suite := validation.NewValidationSuite().
		WithOutput(cmd.OutOrStdout()).
		WithModelPath(modelPath).
		WithFailFast(failFast).
		WithTimeout(timeout)

	if load {
		suite = suite.WithLoadCheck(func(ctx context.Context, path string) error {
			env, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer env.logger.Sync()

			h, err := env.bridge.Open(path)
			if err != nil {
				return err
			}
			env.bridge.Destroy(int64(h))
			return nil
		})
	}

	result := suite.Validate(cmd.Context())
	if !result.Success {
		err := result.FirstError()
		if err == nil {
			err = errors.New(result.Summary())
		}
		return withExitCode(core.ExitCodeError, err)
	}
	return nil
}
