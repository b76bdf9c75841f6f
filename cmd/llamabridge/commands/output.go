package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"llama_bridge/llamaruntime"
)

var (
	dim     = color.New(color.FgHiBlack)
	okColor = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	label   = color.New(color.FgCyan)
)

func speedColor(r llamaruntime.SpeedRating) *color.Color {
	switch r {
	case llamaruntime.SpeedGood:
		return okColor
	case llamaruntime.SpeedAcceptable:
		return color.New(color.FgWhite)
	default:
		return warn
	}
}

// printResult writes one line summarizing a generation.
func printResult(w io.Writer, res *llamaruntime.GenerateResult) {
	dim.Fprintf(w, "── %s prompt + %s generated",
		humanize.Comma(int64(res.PromptTokens)), humanize.Comma(int64(res.GeneratedTokens)))
	if res.MaxTokens < res.RequestedMaxTokens {
		warn.Fprintf(w, " (budget clamped %d→%d)", res.RequestedMaxTokens, res.MaxTokens)
	}
	dim.Fprintf(w, " in %v, ", res.Generation.Round(time.Millisecond))
	speedColor(res.Speed).Fprintf(w, "%.1f tok/s", res.TokensPerSecond)
	dim.Fprintf(w, ", stop=%s\n", res.StopReason)
}

// printStats writes the running totals of a session.
func printStats(w io.Writer, s llamaruntime.Stats) {
	label.Fprint(w, "generations ")
	fmt.Fprintf(w, "%d", s.Generations)
	label.Fprint(w, "  tokens ")
	fmt.Fprintf(w, "%s in / %s out", humanize.Comma(s.PromptTokens), humanize.Comma(s.GeneratedTokens))
	label.Fprint(w, "  errors ")
	fmt.Fprintf(w, "%d", s.Errors)
	label.Fprint(w, "  time ")
	fmt.Fprintf(w, "%v\n", s.TotalDuration.Round(time.Millisecond))
}
