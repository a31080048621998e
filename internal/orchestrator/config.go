package orchestrator

import (
	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/invoke"
)

// Config holds the settings of one ecosystem run. It is a snapshot: the
// parameter tuple does not change for the lifetime of an Orchestrator.
type Config struct {
	// Root is the absolute project directory.
	Root string

	Ecosystem detect.Ecosystem

	// Params is the build parameter tuple passed to every layer.
	Params detect.Params

	// OutputDir overrides where build outputs and stamps live. Relative
	// paths are resolved against Root.
	OutputDir string

	// LintStrict treats lint warnings as fatal.
	LintStrict bool

	// Python is the interpreter for pip-based variants.
	Python string

	// RunScript is the node script used by run without arguments.
	RunScript string

	// SourceGlobs replaces the ecosystem's default build inputs when set.
	SourceGlobs []string

	// Invoker runs external tools. Defaults to a real process invoker.
	Invoker invoke.Invoker

	// OnProgress, when set, receives progress events synchronously.
	OnProgress func(ProgressEvent)
}
