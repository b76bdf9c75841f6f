// Command llamabridge drives the bridge from a terminal: one-shot
// generation, an interactive prompt loop, model inspection and preflight
// checks.
package main

import (
	"os"

	"github.com/fatih/color"

	"llama_bridge/cmd/llamabridge/commands"
	"llama_bridge/core"
)

func main() {
	err := commands.Execute()
	if err == nil {
		return
	}

	code := commands.ExitCode(err)
	if core.IsSignalExit(code) {
		color.New(color.FgYellow).Fprintf(os.Stderr, "Stopped: %s\n", core.ExitCodeName(code))
	} else {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v (%s)\n", err, core.ExitCodeName(code))
	}
	os.Exit(code)
}
