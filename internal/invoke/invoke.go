// Package invoke is the single seam through which external tools are run.
// The dispatcher and the toolchain resolver depend only on Invoker, so a
// Mock is enough to exercise every orchestrator transition.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Invocation is one external process call.
type Invocation struct {
	Dir  string
	Name string
	Args []string
	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env []string
}

// String renders the command line for logs.
func (i Invocation) String() string {
	if len(i.Args) == 0 {
		return i.Name
	}
	return i.Name + " " + strings.Join(i.Args, " ")
}

// Result is the outcome of a process that ran to completion.
type Result struct {
	ExitCode int `json:"exit_code"`
	// Diagnostic is the tail of the tool's stderr, kept for error reports.
	// The full output has already been streamed.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Success reports a zero exit code.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Invoker runs external tools.
type Invoker interface {
	// LookPath resolves a binary name the way the shell would.
	LookPath(name string) (string, error)
	// Run executes inv and waits for it. A non-zero exit is reported in
	// Result, not as an error; err is set only when the process could not
	// be started or waited for.
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// DefaultWaitDelay is how long a cancelled tool gets to exit on its own.
const DefaultWaitDelay = 10 * time.Second

// DiagnosticTail is how many trailing stderr bytes Result keeps.
const DiagnosticTail = 4096

// ExecInvoker runs real processes, streaming their output verbatim.
type ExecInvoker struct {
	// Stdin is handed to the tool. nil gives it no input (the null device).
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds how long Run waits after cancellation for the tool to
	// exit on its own before it is killed.
	WaitDelay time.Duration
}

var _ Invoker = (*ExecInvoker)(nil)

// NewExecInvoker connects tools to the process's own stdin, stdout and
// stderr.
func NewExecInvoker() *ExecInvoker {
	return &ExecInvoker{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, WaitDelay: DefaultWaitDelay}
}

func (e *ExecInvoker) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run starts the tool and waits for it. On context cancellation the tool
// receives an interrupt and handles it itself; it is killed only after
// WaitDelay.
func (e *ExecInvoker) Run(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Name == "" {
		return Result{}, errors.New("invoke: empty command name")
	}

	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = e.Stdin
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = e.WaitDelay

	tail := newTailBuffer(DiagnosticTail)
	cmd.Stdout = orDiscard(e.Stdout)
	cmd.Stderr = io.MultiWriter(orDiscard(e.Stderr), tail)

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{ExitCode: exitErr.ExitCode(), Diagnostic: tail.String()}, nil
		}
		return Result{}, fmt.Errorf("running %s: %w", inv.Name, err)
	}
	return Result{ExitCode: 0, Diagnostic: tail.String()}, nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last n bytes written to it.
type tailBuffer struct {
	n   int
	buf []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.n; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
