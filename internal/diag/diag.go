// Package diag holds the error and warning taxonomy shared by detection,
// dispatch and the orchestrator, and maps fatal conditions to exit codes.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// MissingManifestError reports that no recognized marker of any kind exists
// for an ecosystem. There is no fallback.
type MissingManifestError struct {
	Ecosystem string
	Root      string
	Expected  []string
}

func (e *MissingManifestError) Error() string {
	return fmt.Sprintf("%s: no manifest found in %s (expected one of: %s)",
		e.Ecosystem, e.Root, strings.Join(e.Expected, ", "))
}

// MissingToolBinaryError reports that the tool required by the detected
// variant is not installed. When Lockfile is set the lockfile is an explicit
// declaration of intent and no other tool is tried.
type MissingToolBinaryError struct {
	Tool     string
	Lockfile string
	Hint     string
}

func (e *MissingToolBinaryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "required tool %q is not installed", e.Tool)
	if e.Lockfile != "" {
		fmt.Fprintf(&b, " (selected by %s)", e.Lockfile)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "; %s", e.Hint)
	}
	return b.String()
}

// ExternalToolError reports a dispatched process that exited non-zero. Its
// output has already been forwarded verbatim.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("%s %s exited with status %d", e.Tool, strings.Join(e.Args, " "), e.ExitCode)
}

// ToolchainInstallError reports that the toolchain manager failed to install
// a toolchain, target or component.
type ToolchainInstallError struct {
	Toolchain string
	Target    string
	Step      string
	Err       error
}

func (e *ToolchainInstallError) Error() string {
	id := e.Toolchain
	if e.Target != "" {
		id += " (" + e.Target + ")"
	}
	return fmt.Sprintf("toolchain %s: %s failed: %v", id, e.Step, e.Err)
}

func (e *ToolchainInstallError) Unwrap() error { return e.Err }

// ExitCode maps an error to the process exit status: 0 for nil, the tool's
// own status for dispatched tool failures and 1 for everything else,
// including a failed rustup step.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var installErr *ToolchainInstallError
	if errors.As(err, &installErr) {
		return 1
	}
	var toolErr *ExternalToolError
	if errors.As(err, &toolErr) && toolErr.ExitCode > 0 {
		return toolErr.ExitCode
	}
	return 1
}
