//go:build nocgo || !cgo

package commands

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
	"llama_bridge/llamaruntime/llamatest"
)

// isolateEnv keeps the host's LLAMA_* settings and log file out of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLAMA_CONFIG_FILE", "")
	t.Setenv("LLAMA_MODEL_PATH", "")
	t.Setenv("LLAMA_MAX_TOKENS", "")
	t.Setenv("LLAMA_LOG_LEVEL", "error")
	t.Setenv("LLAMA_LOG_FILE", filepath.Join(t.TempDir(), "llamabridge.log"))
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, e *llamatest.Engine, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var opts []llamaruntime.Option
	if e != nil {
		opts = append(opts, llamaruntime.WithEngine(e))
	}
	root := NewRootCmd(opts...)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerate_PrintsText(t *testing.T) {
	isolateEnv(t)
	e := llamatest.NewEngine("Hello", ",", " world")
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

	stdout, stderr, err := run(t, e, "", "generate", "-m", model, "-p", "hi", "-n", "16", "--stats")
	if err != nil {
		t.Fatalf("generate: %v\nstderr: %s", err, stderr)
	}
	if stdout != "Hello, world\n" {
		t.Errorf("stdout = %q, want %q", stdout, "Hello, world\n")
	}
	if !strings.Contains(stderr, "stop=eog") {
		t.Errorf("stats line missing from stderr: %q", stderr)
	}

	inits, frees := e.BackendCounts()
	if inits != 1 || frees != 1 {
		t.Errorf("backend init/free = %d/%d, want 1/1", inits, frees)
	}
	if !e.Models()[0].Freed {
		t.Error("model was not freed after generate")
	}
}

func TestGenerate_PromptFromArgs(t *testing.T) {
	isolateEnv(t)
	e := llamatest.NewEngine("ok")
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")
	t.Setenv("LLAMA_MODEL_PATH", model)

	stdout, _, err := run(t, e, "", "generate", "tell", "me")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if stdout != "ok\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(e *llamatest.Engine)
		args     func(model string) []string
		wantCode int
	}{
		{
			name:     "no prompt",
			setup:    func(e *llamatest.Engine) {},
			args:     func(model string) []string { return []string{"generate", "-m", model} },
			wantCode: core.ExitCodeError,
		},
		{
			name:     "missing model",
			setup:    func(e *llamatest.Engine) {},
			args:     func(model string) []string { return []string{"generate", "-m", model + ".missing.gguf", "-p", "x"} },
			wantCode: core.ExitCodeModelUnavailable,
		},
		{
			name:     "load rejected",
			setup:    func(e *llamatest.Engine) { e.FailLoad = true },
			args:     func(model string) []string { return []string{"generate", "-m", model, "-p", "x"} },
			wantCode: core.ExitCodeModelUnavailable,
		},
		{
			name:     "context recreation fails",
			setup:    func(e *llamatest.Engine) { e.ContextLimit = 1 },
			args:     func(model string) []string { return []string{"generate", "-m", model, "-p", "x"} },
			wantCode: core.ExitCodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			e := llamatest.NewEngine("unused")
			tt.setup(e)
			model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

			_, _, err := run(t, e, "", tt.args(model)...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode = %d (%s), want %d", got, core.ExitCodeName(got), tt.wantCode)
			}
		})
	}
}

func TestGenerate_NoModelConfigured(t *testing.T) {
	isolateEnv(t)

	_, _, err := run(t, llamatest.NewEngine(), "", "generate", "-p", "x")
	if core.GetErrorCode(err) != core.ErrCodeMissingConfig {
		t.Errorf("err = %v, want a %s ConfigError", err, core.ErrCodeMissingConfig)
	}
}

func TestLogLevelFlag(t *testing.T) {
	isolateEnv(t)
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

	_, stderr, err := run(t, llamatest.NewEngine("ok"), "", "--log-level", "debug", "generate", "-m", model, "-p", "x")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, want := range []string{"configuration loaded", `"logger":"generate"`, "llamabridge.log"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}

	_, stderr, err = run(t, llamatest.NewEngine("ok"), "", "generate", "-m", model, "-p", "x")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Contains(stderr, "configuration loaded") {
		t.Errorf("debug entry written at LLAMA_LOG_LEVEL=error:\n%s", stderr)
	}
}

func TestRepl_FreshContextPerLine(t *testing.T) {
	isolateEnv(t)
	e := llamatest.NewEngine("answer")
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

	stdout, stderr, err := run(t, e, "first\n\nsecond\n/stats\n/quit\nignored\n", "repl", "-m", model)
	if err != nil {
		t.Fatalf("repl: %v\nstderr: %s", err, stderr)
	}
	if stdout != "answer\nanswer\n" {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "generations 2") {
		t.Errorf("/stats output missing: %q", stderr)
	}

	// One context from load plus one per prompt.
	m := e.Models()[0]
	if len(m.Contexts) != 3 {
		t.Errorf("contexts created = %d, want 3", len(m.Contexts))
	}
	if !m.Freed {
		t.Error("model not freed on exit")
	}
}

func TestRepl_EOFExits(t *testing.T) {
	isolateEnv(t)
	e := llamatest.NewEngine("x")
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

	stdout, _, err := run(t, e, "one", "repl", "-m", model)
	if err != nil {
		t.Fatalf("repl: %v", err)
	}
	if stdout != "x\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestInspect(t *testing.T) {
	isolateEnv(t)
	model := llamatest.WriteModel(t, t.TempDir(), "qwen-tiny.gguf")

	stdout, _, err := run(t, nil, "", "inspect", model)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"qwen-tiny", "v3", "tensors", "backend"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}
}

func TestInspect_Checksum(t *testing.T) {
	isolateEnv(t)
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")
	sum, err := core.ComputeSHA256(model)
	if err != nil {
		t.Fatalf("ComputeSHA256: %v", err)
	}

	stdout, _, err := run(t, nil, "", "inspect", model, "--sha256")
	if err != nil {
		t.Fatalf("inspect --sha256: %v", err)
	}
	if !strings.Contains(stdout, sum) {
		t.Errorf("output missing digest %s:\n%s", sum, stdout)
	}

	if _, _, err := run(t, nil, "", "inspect", model, "--verify", sum); err != nil {
		t.Errorf("inspect --verify with matching digest: %v", err)
	}

	_, _, err = run(t, nil, "", "inspect", model, "--verify", strings.Repeat("0", 64))
	if ExitCode(err) != core.ExitCodeModelUnavailable {
		t.Errorf("mismatch ExitCode = %d, want %d", ExitCode(err), core.ExitCodeModelUnavailable)
	}
}

func TestInspect_InvalidFile(t *testing.T) {
	isolateEnv(t)
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.bin")

	_, _, err := run(t, nil, "", "inspect", "--model", model)
	if ExitCode(err) != core.ExitCodeModelUnavailable {
		t.Errorf("ExitCode = %d, want %d (err %v)", ExitCode(err), core.ExitCodeModelUnavailable, err)
	}
}

func TestCheck(t *testing.T) {
	isolateEnv(t)
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

	stdout, _, err := run(t, llamatest.NewEngine(), "", "check", "-m", model, "--load")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "Model File") {
		t.Errorf("check output missing model step:\n%s", stdout)
	}
}

func TestCheck_BadConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LLAMA_TOP_P", "2")

	_, _, err := run(t, nil, "", "check", "--fail-fast")
	if ExitCode(err) != core.ExitCodeError {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), core.ExitCodeError)
	}
	if core.GetErrorCode(err) != core.ErrCodeOutOfRange {
		t.Errorf("err = %v, want OUT_OF_RANGE", err)
	}
}

func TestExitCode(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		err  error
		want int
	}{
		{nil, core.ExitCodeSuccess},
		{base, core.ExitCodeError},
		{withExitCode(core.ExitCodeSIGINT, base), core.ExitCodeSIGINT},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	if withExitCode(core.ExitCodeError, nil) != nil {
		t.Error("withExitCode(nil) should be nil")
	}
}
