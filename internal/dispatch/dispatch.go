// Package dispatch maps a (tool variant, action) pair to a concrete external
// invocation and runs it.
//
// Strict variants always use the tool's frozen/reproducible mode. A missing
// binary is fatal: the dispatcher never switches to another tool, because a
// lockfile is an explicit declaration of intent.
package dispatch

import (
	"context"
	"path/filepath"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/logger"
)

var log = logger.ForComponent("dispatch")

// Options are the per-invocation settings that shape command templates
// beyond the parameter tuple.
type Options struct {
	// Root is the project directory the tool runs in.
	Root string
	// OutputDir is the configured artifact directory, or "".
	OutputDir string
	// LintStrict turns lint warnings into errors.
	LintStrict bool
	// RunScript is the package.json script used by node run without
	// arguments. Defaults to "start".
	RunScript string
}

// Dispatcher builds and runs tool invocations.
type Dispatcher struct {
	invoker invoke.Invoker
	opts    Options
}

// New creates a Dispatcher.
func New(invoker invoke.Invoker, opts Options) *Dispatcher {
	if opts.RunScript == "" {
		opts.RunScript = "start"
	}
	return &Dispatcher{invoker: invoker, opts: opts}
}

// Command returns the invocation for action without running it, plus any
// warnings the choice of mode carries.
func (d *Dispatcher) Command(v detect.ToolVariant, action Action, params detect.Params, args []string) (invoke.Invocation, []diag.Warning, error) {
	if !Supports(v.Ecosystem, action) {
		return invoke.Invocation{}, nil, &UnsupportedActionError{Ecosystem: v.Ecosystem, Action: action}
	}

	var (
		cmdArgs  []string
		warnings []diag.Warning
		err      error
	)
	switch v.Ecosystem {
	case detect.EcosystemNode:
		cmdArgs, warnings, err = d.nodeArgs(v, action, args)
	case detect.EcosystemRust:
		cmdArgs, warnings, err = d.cargoArgs(v, action, params.Normalized(), args)
	case detect.EcosystemPython:
		cmdArgs, warnings, err = d.pythonArgs(v, action, args)
	default:
		return invoke.Invocation{}, nil, &UnsupportedActionError{Ecosystem: v.Ecosystem, Action: action}
	}
	if err != nil {
		return invoke.Invocation{}, nil, err
	}
	return invoke.Invocation{Dir: d.opts.Root, Name: v.Tool, Args: cmdArgs}, warnings, nil
}

// Run resolves the tool binary, then runs the command for action. Output is
// streamed by the invoker; a non-zero exit becomes an ExternalToolError
// carrying the tool's exit code.
func (d *Dispatcher) Run(ctx context.Context, v detect.ToolVariant, action Action, params detect.Params, args []string) (invoke.Result, []diag.Warning, error) {
	inv, warnings, err := d.Command(v, action, params, args)
	if err != nil {
		return invoke.Result{}, nil, err
	}

	if _, err := d.invoker.LookPath(v.Tool); err != nil {
		return invoke.Result{}, warnings, &diag.MissingToolBinaryError{
			Tool:     v.Tool,
			Lockfile: v.Lockfile,
			Hint:     InstallHint(v),
		}
	}

	for _, w := range warnings {
		log.Warn(w.Message, "code", string(w.Code), "ecosystem", string(v.Ecosystem))
	}
	log.Info("dispatching", "ecosystem", string(v.Ecosystem), "variant", v.Name(), "command", inv.String())

	res, err := d.invoker.Run(ctx, inv)
	if err != nil {
		return invoke.Result{}, warnings, err
	}
	if !res.Success() {
		return res, warnings, &diag.ExternalToolError{Tool: v.Tool, Args: inv.Args, ExitCode: res.ExitCode}
	}
	return res, warnings, nil
}

// InstallHint is the remediation shown when v's binary is missing.
func InstallHint(v detect.ToolVariant) string {
	switch v.Kind {
	case detect.KindPnpm:
		return "install it with `corepack enable pnpm` or https://pnpm.io/installation"
	case detect.KindYarn:
		return "install it with `corepack enable yarn`"
	case detect.KindBun:
		return "install it from https://bun.sh"
	case detect.KindNpmStrict, detect.KindNpmLoose:
		return "install Node.js from https://nodejs.org"
	case detect.KindPoetry:
		return "install it with `pipx install poetry`"
	case detect.KindCargo:
		return "install rustup from https://rustup.rs"
	default:
		return "install a Python 3 interpreter or set POLYDEPS_PYTHON"
	}
}

func (d *Dispatcher) outputDir() string {
	if d.opts.OutputDir == "" || filepath.IsAbs(d.opts.OutputDir) {
		return d.opts.OutputDir
	}
	return filepath.Join(d.opts.Root, d.opts.OutputDir)
}
