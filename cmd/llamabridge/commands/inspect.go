package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [model.gguf]",
		Short: "Validate a model file and print its GGUF header",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInspect,
	}
	flags := cmd.Flags()
	flags.StringP("model", "m", "", "path to a .gguf model (default $LLAMA_MODEL_PATH)")
	flags.Bool("sha256", false, "print the file's SHA-256")
	flags.String("verify", "", "fail unless the file's SHA-256 equals this hex digest")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		// Config errors only matter if the model path has to come from it.
		cfg, _ := core.LoadConfig()
		var err error
		if path, err = modelFlag(cmd, cfg); err != nil {
			return err
		}
	}

	m, err := llamaruntime.InspectModel(path)
	if err != nil {
		return withExitCode(core.ExitCodeModelUnavailable, err)
	}

	w := cmd.OutOrStdout()
	row := func(name, value string) {
		label.Fprintf(w, "%-9s", name)
		fmt.Fprintln(w, value)
	}
	row("name", m.Name)
	row("path", m.Path)
	row("size", fmt.Sprintf("%s (%s bytes)", m.HumanSize(), humanize.Comma(m.Size)))
	row("gguf", fmt.Sprintf("v%d", m.Header.Version))
	if m.Header.Version >= 2 {
		row("tensors", humanize.Comma(int64(m.Header.TensorCount)))
		row("metadata", humanize.Comma(int64(m.Header.KVCount)))
	}

	if expected, _ := cmd.Flags().GetString("verify"); expected != "" {
		ok, err := core.VerifyChecksum(path, expected)
		if err != nil {
			return err
		}
		if !ok {
			row("sha256", warn.Sprint("MISMATCH"))
			return withExitCode(core.ExitCodeModelUnavailable, fmt.Errorf("checksum mismatch for %s", path))
		}
		row("sha256", okColor.Sprint("verified"))
	} else if show, _ := cmd.Flags().GetBool("sha256"); show {
		sum, err := core.ComputeSHA256(path)
		if err != nil {
			return err
		}
		row("sha256", sum)
	}

	if llamaruntime.BackendAvailable() {
		row("backend", okColor.Sprint("llama.cpp"))
	} else {
		row("backend", warn.Sprint("unavailable (built without cgo)"))
	}
	return nil
}
