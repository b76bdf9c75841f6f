// Package validation runs the preflight checks behind `llamabridge check`:
// configuration, model file, backend and an optional trial load.
package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
)

// ValidationStep is one check and its outcome.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPassed StepStatus = iota + 1
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// LoadFunc opens and immediately releases the model at path.
type LoadFunc func(ctx context.Context, path string) error

// outcome is what a check reports back to runStep.
type outcome struct {
	status  StepStatus
	message string
	err     error
}

func passed(format string, args ...any) outcome {
	return outcome{status: StepPassed, message: fmt.Sprintf(format, args...)}
}

func failed(err error) outcome {
	return outcome{status: StepFailed, err: err}
}

func warning(format string, args ...any) outcome {
	return outcome{status: StepWarning, message: fmt.Sprintf(format, args...)}
}

// ValidationSuite checks that the bridge can run with the current
// configuration before a foreign caller tries to Init it.
type ValidationSuite struct {
	output       io.Writer
	envPath      string
	modelPath    string
	load         LoadFunc
	backend      func() bool
	timeout      time.Duration
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a suite that prints to stdout and skips the
// trial load.
func NewValidationSuite() *ValidationSuite {
	return &ValidationSuite{
		output:       os.Stdout,
		envPath:      ".env",
		backend:      llamaruntime.BackendAvailable,
		timeout:      2 * time.Minute,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithEnvPath sets the .env file to look for.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.envPath = path
	return s
}

// WithModelPath overrides LLAMA_MODEL_PATH for the model checks.
func (s *ValidationSuite) WithModelPath(path string) *ValidationSuite {
	s.modelPath = path
	return s
}

// WithLoadCheck enables the trial load step.
func (s *ValidationSuite) WithLoadCheck(load LoadFunc) *ValidationSuite {
	s.load = load
	return s
}

// WithBackendProbe replaces llamaruntime.BackendAvailable.
func (s *ValidationSuite) WithBackendProbe(probe func() bool) *ValidationSuite {
	s.backend = probe
	return s
}

// WithTimeout bounds the trial load.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.timeout = timeout
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// Validate runs every check in order. Model checks are skipped when the
// configuration does not load; the trial load is skipped unless the model
// file and backend both passed.
func (s *ValidationSuite) Validate(ctx context.Context) SuiteResult {
	start := time.Now()
	steps := make([]ValidationStep, 0, 5)

	if s.showProgress {
		s.printHeader("llama bridge preflight")
	}

	stop := func(step ValidationStep) bool {
		steps = append(steps, step)
		return s.failFast && step.Status == StepFailed
	}

	if stop(s.runStep("Environment File", s.checkEnvFile)) {
		return s.finish(steps, start)
	}

	var cfg *core.Config
	configStep := s.runStep("Configuration", func() outcome {
		var err error
		cfg, err = core.LoadConfig()
		if err != nil {
			return failed(err)
		}
		return passed("ctx=%d batch=%d threads=%d", cfg.ContextSize, cfg.BatchSize, cfg.Threads)
	})
	if stop(configStep) {
		return s.finish(steps, start)
	}

	path := s.modelPath
	if path == "" && cfg != nil {
		path = cfg.ModelPath
	}

	var modelStep ValidationStep
	if configStep.Status == StepFailed && path == "" {
		modelStep = s.skip("Model File", "Skipped due to configuration errors")
	} else {
		modelStep = s.runStep("Model File", func() outcome { return checkModelFile(path) })
	}
	if stop(modelStep) {
		return s.finish(steps, start)
	}

	backendStep := s.runStep("Inference Backend", func() outcome {
		if s.backend() {
			return passed("llama.cpp linked")
		}
		return warning("built without cgo; sessions cannot be opened")
	})
	steps = append(steps, backendStep)

	switch {
	case s.load == nil:
		steps = append(steps, s.skip("Model Load", "Not requested"))
	case modelStep.Status != StepPassed || backendStep.Status != StepPassed:
		steps = append(steps, s.skip("Model Load", "Skipped due to earlier failures"))
	default:
		steps = append(steps, s.runStep("Model Load", func() outcome {
			loadCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := s.load(loadCtx, path); err != nil {
				return failed(err)
			}
			return passed("loaded and released")
		}))
	}

	return s.finish(steps, start)
}

func (s *ValidationSuite) checkEnvFile() outcome {
	if err := CheckFileExists(s.envPath); err != nil {
		return warning("%s not found; using process environment only", s.envPath)
	}
	return passed("%s", s.envPath)
}

func checkModelFile(path string) outcome {
	if path == "" {
		return failed(core.ErrMissingConfig("LLAMA_MODEL_PATH"))
	}
	if err := CheckFileExists(path); err != nil {
		return failed(err)
	}
	m, err := llamaruntime.InspectModel(path)
	if err != nil {
		return failed(err)
	}
	return passed("%s, %s, GGUF v%d", m.Name, m.HumanSize(), m.Header.Version)
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() outcome) ValidationStep {
	if s.showProgress {
		s.printStepStart(name)
	}

	start := time.Now()
	o := fn()
	step := ValidationStep{
		Name:    name,
		Status:  o.status,
		Message: o.message,
		Error:   o.err,
		Latency: time.Since(start),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func (s *ValidationSuite) skip(name, reason string) ValidationStep {
	step := ValidationStep{Name: name, Status: StepSkipped, Message: reason}
	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func (s *ValidationSuite) finish(steps []ValidationStep, start time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(start),
		Success:    true,
	}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}

	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	// Overwrite the "◌ name..." line.
	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	dim := color.New(color.FgHiBlack)
	if result.Success {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprintf(s.output, "━━━ Ready ")
		dim.Fprintf(s.output, "(%d/%d checks passed, %d warnings, %v)",
			result.PassedSteps, result.TotalSteps, result.Warnings, result.Duration.Round(time.Millisecond))
		ok.Fprintln(s.output, " ━━━")
	} else {
		bad := color.New(color.FgRed, color.Bold)
		bad.Fprintf(s.output, "━━━ Not ready ")
		dim.Fprintf(s.output, "(%d passed, %d failed)", result.PassedSteps, result.FailedSteps)
		bad.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// FirstError returns the first error from failed steps, or nil.
func (r SuiteResult) FirstError() error {
	for _, step := range r.Steps {
		if step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a one-line human-readable summary.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Preflight passed: ")
	} else {
		sb.WriteString("Preflight failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.PassedSteps, r.TotalSteps)
	if r.FailedSteps > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.FailedSteps)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}
