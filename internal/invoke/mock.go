package invoke

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Mock is a scripted Invoker for tests. Binaries are present unless marked
// missing; every Run succeeds unless an exit code is scripted for the
// command name (or "name subcommand").
type Mock struct {
	mu      sync.Mutex
	missing map[string]bool
	exits   map[string]int
	calls   []Invocation
	// OnRun, when set, is called for every invocation before the scripted
	// result is returned. Tests use it to simulate tool side effects.
	OnRun func(inv Invocation)
}

var _ Invoker = (*Mock)(nil)

// NewMock returns a Mock with every binary present.
func NewMock() *Mock {
	return &Mock{missing: make(map[string]bool), exits: make(map[string]int)}
}

// Missing marks binaries as absent from PATH.
func (m *Mock) Missing(names ...string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		m.missing[n] = true
	}
	return m
}

// Present undoes Missing.
func (m *Mock) Present(names ...string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		delete(m.missing, n)
	}
	return m
}

// Exit scripts the exit code returned for a command. key is the binary name
// or the binary name and subcommand separated by a space. The subcommand is
// the first argument not starting with "+", so "cargo build" matches
// "cargo +stable build".
func (m *Mock) Exit(key string, code int) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits[key] = code
	return m
}

func (m *Mock) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missing[name] {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return "/mock/bin/" + name, nil
}

func (m *Mock) Run(ctx context.Context, inv Invocation) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	if m.missing[inv.Name] {
		m.mu.Unlock()
		return Result{}, fmt.Errorf("running %s: %w", inv.Name, exec.ErrNotFound)
	}
	m.calls = append(m.calls, inv)
	code, ok := -1, false
	if sub := subcommand(inv.Args); sub != "" {
		code, ok = m.exits[inv.Name+" "+sub]
	}
	if !ok {
		code, ok = m.exits[inv.Name]
	}
	hook := m.OnRun
	m.mu.Unlock()

	if hook != nil {
		hook(inv)
	}
	if !ok {
		return Result{}, nil
	}
	res := Result{ExitCode: code}
	if code != 0 {
		res.Diagnostic = fmt.Sprintf("%s failed with exit code %d", inv.Name, code)
	}
	return res, nil
}

func subcommand(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "+") {
			return a
		}
	}
	return ""
}

// Calls returns a copy of the recorded invocations.
func (m *Mock) Calls() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Invocation(nil), m.calls...)
}

// CallCount returns how many invocations ran the named binary.
func (m *Mock) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Reset forgets recorded invocations.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
