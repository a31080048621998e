package dispatch

import (
	"errors"
	"strings"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
)

func noLockfile(tool, hint string) diag.Warning {
	return diag.Warnf(diag.WarnNoLockfile, "no lockfile found; %s is running a mutable install (%s)", tool, hint)
}

func (d *Dispatcher) nodeArgs(v detect.ToolVariant, action Action, args []string) ([]string, []diag.Warning, error) {
	switch action {
	case ActionInstall:
		switch v.Kind {
		case detect.KindPnpm, detect.KindBun:
			return []string{"install", "--frozen-lockfile"}, nil, nil
		case detect.KindYarn:
			return []string{"install", "--immutable"}, nil, nil
		case detect.KindNpmStrict:
			return []string{"ci"}, nil, nil
		default:
			return []string{"install"}, []diag.Warning{
				diag.Warnf(diag.WarnLooseManifest, "only package.json found; dependency versions are not pinned"),
				noLockfile("npm", "commit the generated package-lock.json"),
			}, nil
		}
	case ActionBuild:
		return append([]string{"run", "build"}, args...), nil, nil
	case ActionRun:
		if len(args) == 0 {
			return []string{"run", d.opts.RunScript}, nil, nil
		}
		return append([]string{"run"}, args...), nil, nil
	case ActionTest:
		out := []string{"test"}
		if v.Kind == detect.KindBun {
			out = []string{"run", "test"}
		}
		if len(args) > 0 && (v.Kind == detect.KindNpmStrict || v.Kind == detect.KindNpmLoose) {
			out = append(out, "--")
		}
		return append(out, args...), nil, nil
	case ActionCheck:
		return append([]string{"run", "lint"}, args...), nil, nil
	}
	return nil, nil, &UnsupportedActionError{Ecosystem: v.Ecosystem, Action: action}
}

// cargoArgs renders
//
//	cargo [+toolchain] <sub> [--release|--profile P] [--features a,b]
//	      [--target T] [--target-dir D] [--locked] [args]
func (d *Dispatcher) cargoArgs(v detect.ToolVariant, action Action, p detect.Params, args []string) ([]string, []diag.Warning, error) {
	var out []string
	if v.Toolchain != "" {
		out = append(out, "+"+v.Toolchain)
	}

	var warnings []diag.Warning
	switch action {
	case ActionInstall:
		out = append(out, "fetch")
		if v.Target != "" {
			out = append(out, "--target", v.Target)
		}
		if v.Strict {
			out = append(out, "--locked")
		} else {
			warnings = append(warnings, noLockfile("cargo", "commit Cargo.lock"))
		}
		return out, warnings, nil

	case ActionFmt:
		return append(append(out, "fmt", "--all"), args...), nil, nil

	case ActionFmtCheck:
		return append(out, "fmt", "--all", "--", "--check"), nil, nil

	case ActionBuild, ActionCheck, ActionTest:
		out = append(out, string(action))
		out = append(out, d.buildFlags(v, p, "--profile")...)
		return append(out, args...), nil, nil

	case ActionRun:
		out = append(out, "run")
		out = append(out, d.buildFlags(v, p, "--profile")...)
		if len(args) > 0 {
			out = append(out, "--")
			out = append(out, args...)
		}
		return out, nil, nil

	case ActionNextest:
		out = append(out, "nextest", "run")
		out = append(out, d.buildFlags(v, p, "--cargo-profile")...)
		return append(out, args...), nil, nil

	case ActionClippy:
		out = append(out, "clippy")
		out = append(out, d.buildFlags(v, p, "--profile")...)
		out = append(out, args...)
		if d.opts.LintStrict {
			out = append(out, "--", "-D", "warnings")
		}
		return out, nil, nil

	case ActionClippyFix:
		out = append(out, "clippy", "--fix", "--allow-dirty", "--allow-staged")
		out = append(out, d.buildFlags(v, p, "--profile")...)
		return append(out, args...), nil, nil
	}
	return nil, nil, &UnsupportedActionError{Ecosystem: v.Ecosystem, Action: action}
}

// buildFlags derives cargo flags from the parameter tuple. profileFlag is
// the flag naming a custom profile; nextest spells it --cargo-profile.
func (d *Dispatcher) buildFlags(v detect.ToolVariant, p detect.Params, profileFlag string) []string {
	var out []string
	switch p.Profile {
	case detect.ProfileDev, "":
	case detect.ProfileRelease:
		out = append(out, "--release")
	default:
		out = append(out, profileFlag, p.Profile)
	}
	if len(p.Features) > 0 {
		out = append(out, "--features", strings.Join(p.Features, ","))
	}
	if v.Target != "" {
		out = append(out, "--target", v.Target)
	}
	if dir := d.outputDir(); dir != "" {
		out = append(out, "--target-dir", dir)
	}
	if v.Strict {
		out = append(out, "--locked")
	}
	return out
}

func (d *Dispatcher) pythonArgs(v detect.ToolVariant, action Action, args []string) ([]string, []diag.Warning, error) {
	if v.Kind == detect.KindPoetry {
		switch action {
		case ActionInstall:
			return []string{"install", "--no-interaction"}, nil, nil
		case ActionBuild:
			out := []string{"build"}
			if dir := d.outputDir(); dir != "" {
				out = append(out, "--output", dir)
			}
			return append(out, args...), nil, nil
		case ActionTest:
			return append([]string{"run", "pytest"}, args...), nil, nil
		case ActionCheck:
			return append([]string{"run", "ruff", "check", "."}, args...), nil, nil
		case ActionRun:
			if len(args) == 0 {
				return nil, nil, errors.New("run: no command given")
			}
			return append([]string{"run"}, args...), nil, nil
		}
		return nil, nil, &UnsupportedActionError{Ecosystem: v.Ecosystem, Action: action}
	}

	switch action {
	case ActionInstall:
		switch v.Kind {
		case detect.KindRequirementsLock:
			return []string{"-m", "pip", "install", "--no-deps", "-r", detect.RequirementsLock}, nil, nil
		case detect.KindRequirementsTxt:
			return []string{"-m", "pip", "install", "-r", detect.RequirementsTxt},
				[]diag.Warning{noLockfile("pip", "pin versions with pip-compile into requirements.lock")}, nil
		default:
			install := []string{"-m", "pip", "install", "-e", "."}
			// A poetry project whose poetry is missing already has its lock;
			// the fallback warning covers it.
			if v.FallbackFrom != "" {
				return install, nil, nil
			}
			return install, []diag.Warning{noLockfile("pip", "pin versions with poetry lock or pip-compile")}, nil
		}
	case ActionBuild:
		dir := d.outputDir()
		if dir == "" {
			dir = "dist"
		}
		return append([]string{"-m", "pip", "wheel", "--no-deps", "-w", dir, "."}, args...), nil, nil
	case ActionTest:
		return append([]string{"-m", "pytest"}, args...), nil, nil
	case ActionCheck:
		return append([]string{"-m", "ruff", "check", "."}, args...), nil, nil
	case ActionRun:
		if len(args) == 0 {
			return nil, nil, errors.New("run: no command given")
		}
		return args, nil, nil
	}
	return nil, nil, &UnsupportedActionError{Ecosystem: v.Ecosystem, Action: action}
}
