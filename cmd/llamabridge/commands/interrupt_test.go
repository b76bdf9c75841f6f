//go:build (nocgo || !cgo) && unix

package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"llama_bridge/core"
	"llama_bridge/llamaruntime"
	"llama_bridge/llamaruntime/llamatest"
)

// lockedBuffer is a bytes.Buffer safe for the signal goroutine and the
// command writing at the same time.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// blockingReader blocks every Read until release is closed, then reports EOF.
type blockingReader struct {
	once    sync.Once
	reading chan struct{}
	release chan struct{}
}

func newBlockingReader() *blockingReader {
	return &blockingReader{reading: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	r.once.Do(func() { close(r.reading) })
	<-r.release
	return 0, io.EOF
}

// runWith executes the CLI under ctx with the given stdin.
func runWith(ctx context.Context, e *llamatest.Engine, stdin io.Reader, args ...string) (*lockedBuffer, *lockedBuffer, error) {
	root := NewRootCmd(llamaruntime.WithEngine(e))

	stdout, stderr := &lockedBuffer{}, &lockedBuffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(stdin)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return stdout, stderr, err
}

// catchInterrupt keeps a stray SIGINT from killing the test binary.
func catchInterrupt(t *testing.T) {
	t.Helper()
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, os.Interrupt)
	t.Cleanup(func() { signal.Stop(ch) })
}

func letters(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = string(rune('a' + i%26))
	}
	return words
}

func TestGenerate_ContextCanceledPrintsPartialText(t *testing.T) {
	isolateEnv(t)
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := llamatest.NewEngine(letters(10)...)
	e.OnSample = func(sampled int) {
		if sampled == 2 {
			cancel()
		}
	}

	stdout, stderr, err := runWith(ctx, e, strings.NewReader(""), "generate", "-m", model, "-p", "hi", "-n", "32")
	if got := stdout.String(); got != "abc\n" {
		t.Errorf("stdout = %q, want %q\nstderr: %s", got, "abc\n", stderr)
	}
	if ExitCode(err) != core.ExitCodeError {
		t.Errorf("ExitCode = %d, want %d (err %v)", ExitCode(err), core.ExitCodeError, err)
	}
	if !e.Models()[0].Freed {
		t.Error("model not freed after interrupted generate")
	}
}

func TestGenerate_SIGINTStopsWithPartialText(t *testing.T) {
	isolateEnv(t)
	catchInterrupt(t)
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")

	words := letters(200)
	e := llamatest.NewEngine(words...)
	e.OnSample = func(sampled int) {
		switch {
		case sampled == 2:
			syscall.Kill(os.Getpid(), syscall.SIGINT)
		case sampled > 2:
			// Give the signal goroutine time to cancel before the next token.
			time.Sleep(5 * time.Millisecond)
		}
	}

	stdout, stderr, err := runWith(context.Background(), e, strings.NewReader(""), "generate", "-m", model, "-p", "hi", "-n", "500")
	if got := ExitCode(err); got != core.ExitCodeSIGINT {
		t.Fatalf("ExitCode = %d (%s), want %d\nstderr: %s", got, core.ExitCodeName(got), core.ExitCodeSIGINT, stderr)
	}

	out := strings.TrimSuffix(stdout.String(), "\n")
	if !strings.HasPrefix(out, "abc") {
		t.Errorf("stdout = %q, want the tokens produced before the signal", out)
	}
	if len(out) >= len(words) {
		t.Errorf("generation ran to completion (%d bytes) despite SIGINT", len(out))
	}
}

func TestRepl_SIGINTWhileIdleExits(t *testing.T) {
	isolateEnv(t)
	catchInterrupt(t)
	model := llamatest.WriteModel(t, t.TempDir(), "tiny.gguf")
	e := llamatest.NewEngine("unused")

	stdin := newBlockingReader()
	defer close(stdin.release)

	done := make(chan error, 1)
	go func() {
		_, _, err := runWith(context.Background(), e, stdin, "repl", "-m", model)
		done <- err
	}()

	select {
	case <-stdin.reading:
	case err := <-done:
		t.Fatalf("repl exited before reading input: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("repl never started reading input")
	}

	syscall.Kill(os.Getpid(), syscall.SIGINT)

	select {
	case err := <-done:
		if got := ExitCode(err); got != core.ExitCodeSIGINT {
			t.Errorf("ExitCode = %d (%s), want %d", got, core.ExitCodeName(got), core.ExitCodeSIGINT)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("repl kept waiting for input after SIGINT")
	}

	if !e.Models()[0].Freed {
		t.Error("model not freed after interrupted repl")
	}
}
