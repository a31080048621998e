package dispatch

import (
	"fmt"

	"github.com/dusk-indust/polydeps/internal/detect"
)

// Action is a user-facing verb.
type Action string

const (
	ActionInstall   Action = "install"
	ActionBuild     Action = "build"
	ActionRun       Action = "run"
	ActionTest      Action = "test"
	ActionCheck     Action = "check"
	ActionClean     Action = "clean"
	ActionReinstall Action = "reinstall"

	// Rust-only extras.
	ActionClippy    Action = "clippy"
	ActionClippyFix Action = "clippy-fix"
	ActionFmt       Action = "fmt"
	ActionFmtCheck  Action = "fmt-check"
	ActionNextest   Action = "nextest"
)

// CommonActions are available in every ecosystem.
var CommonActions = []Action{
	ActionInstall, ActionBuild, ActionRun, ActionTest, ActionCheck, ActionClean, ActionReinstall,
}

// RustActions are the extras of the switchable-toolchain ecosystem.
var RustActions = []Action{
	ActionClippy, ActionClippyFix, ActionFmt, ActionFmtCheck, ActionNextest,
}

// ParseAction validates a verb name.
func ParseAction(name string) (Action, error) {
	a := Action(name)
	for _, known := range CommonActions {
		if a == known {
			return a, nil
		}
	}
	for _, known := range RustActions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", name)
}

// Supports reports whether eco understands action.
func Supports(eco detect.Ecosystem, action Action) bool {
	for _, a := range CommonActions {
		if a == action {
			return true
		}
	}
	if eco != detect.EcosystemRust {
		return false
	}
	for _, a := range RustActions {
		if a == action {
			return true
		}
	}
	return false
}

// Cached reports whether the action's success is recorded in a stamp.
func (a Action) Cached() bool {
	return a == ActionInstall || a == ActionBuild
}

// UnsupportedActionError reports a verb the ecosystem does not implement.
type UnsupportedActionError struct {
	Ecosystem detect.Ecosystem
	Action    Action
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("%s does not support %q", e.Ecosystem, e.Action)
}
