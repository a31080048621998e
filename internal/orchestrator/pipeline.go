package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/fingerprint"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/logger"
	"github.com/dusk-indust/polydeps/internal/stamp"
	"github.com/dusk-indust/polydeps/internal/toolchain"
)

var log = logger.ForComponent("orchestrator")

// Compile-time interface check.
var _ Runner = (*Orchestrator)(nil)

// Orchestrator runs verbs for one ecosystem of one project.
type Orchestrator struct {
	cfg        Config
	params     detect.Params
	rules      detect.Rules
	invoker    invoke.Invoker
	engine     *fingerprint.Engine
	stamps     *stamp.Store
	toolStamps *stamp.Store
	toolchains *toolchain.Resolver
	dispatcher *dispatch.Dispatcher
	router     *Router
}

// New wires an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Root == "" {
		return nil, errors.New("orchestrator: project root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolving root: %w", err)
	}
	cfg.Root = root

	rules, err := detect.RulesFor(cfg.Ecosystem, cfg.Python)
	if err != nil {
		return nil, err
	}
	if cfg.Invoker == nil {
		cfg.Invoker = invoke.NewExecInvoker()
	}

	stateDir := stamp.StateDir(cfg.Root, cfg.OutputDir)
	stamps, err := stamp.NewStore(stateDir, string(cfg.Ecosystem))
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:     cfg,
		params:  cfg.Params.Normalized(),
		rules:   rules,
		invoker: cfg.Invoker,
		engine:  fingerprint.New(),
		stamps:  stamps,
		dispatcher: dispatch.New(cfg.Invoker, dispatch.Options{
			Root:       cfg.Root,
			OutputDir:  cfg.OutputDir,
			LintStrict: cfg.LintStrict,
			RunScript:  cfg.RunScript,
		}),
	}
	if cfg.Ecosystem == detect.EcosystemRust {
		o.toolStamps, err = stamp.NewStore(stateDir, stamp.NamespaceToolchain)
		if err != nil {
			return nil, err
		}
		o.toolchains = toolchain.New(cfg.Invoker, o.toolStamps, cfg.Root)
	}
	o.router = NewRouter(cfg.Ecosystem, o)
	return o, nil
}

func (o *Orchestrator) Ecosystem() detect.Ecosystem { return o.cfg.Ecosystem }

// Root returns the absolute project directory.
func (o *Orchestrator) Root() string { return o.cfg.Root }

// Params returns the normalized parameter tuple.
func (o *Orchestrator) Params() detect.Params { return o.params }

// Do runs action. clean and reinstall are handled here; every other verb
// goes through the router so its prerequisites run first.
func (o *Orchestrator) Do(ctx context.Context, action dispatch.Action, args []string) (*Outcome, error) {
	if !dispatch.Supports(o.cfg.Ecosystem, action) {
		return nil, &dispatch.UnsupportedActionError{Ecosystem: o.cfg.Ecosystem, Action: action}
	}
	switch action {
	case dispatch.ActionClean:
		return o.Clean(ctx)
	case dispatch.ActionReinstall:
		return o.Reinstall(ctx)
	default:
		return o.router.Route(ctx, action, args)
	}
}

// Reinstall is clean followed by install with the freshness check bypassed.
func (o *Orchestrator) Reinstall(ctx context.Context) (*Outcome, error) {
	cleaned, err := o.Clean(ctx)
	if err != nil {
		return cleaned, err
	}
	out, err := o.execute(ctx, dispatch.ActionInstall, nil, true)
	if out != nil {
		out.Prereqs = append([]*Outcome{cleaned}, out.Prereqs...)
	}
	return out, err
}

// Execute implements ActionExecutor: it runs a single action without its
// prerequisites.
func (o *Orchestrator) Execute(ctx context.Context, action dispatch.Action, args []string) (*Outcome, error) {
	return o.execute(ctx, action, args, false)
}

// execute walks the state machine for one action. force skips the
// freshness check.
func (o *Orchestrator) execute(ctx context.Context, action dispatch.Action, args []string, force bool) (*Outcome, error) {
	out := &Outcome{Ecosystem: o.cfg.Ecosystem, Action: action, Params: o.params}
	out.visit(StateUninitialized)
	o.emit(action, ProgressWorking, "")

	fail := func(err error) (*Outcome, error) {
		out.visit(StateFailed)
		o.emit(action, ProgressFailed, err.Error())
		return out, fmt.Errorf("%s %s: %w", o.cfg.Ecosystem, action, err)
	}

	res, err := o.resolve()
	if err != nil {
		return fail(err)
	}
	out.Variant = res.variant
	for _, w := range res.warnings {
		log.Warn(w.Message, "code", string(w.Code), "ecosystem", string(o.cfg.Ecosystem))
	}
	out.Warnings = append(out.Warnings, res.warnings...)
	out.visit(StateToolResolved)

	var before map[string]string
	if action.Cached() {
		out.StampKey = stamp.ActionKey(string(action), o.params)
		paths, err := o.inputs(res, action)
		if err != nil {
			return fail(err)
		}
		if before, err = o.engine.Digests(o.cfg.Root, paths); err != nil {
			return fail(err)
		}
		out.Fingerprint = o.engine.Fold(res.desc.Ecosystem, res.variant, o.params, before)
		if !force {
			fresh, err := o.stamps.IsFresh(out.StampKey, out.Fingerprint)
			if err != nil {
				return fail(err)
			}
			if fresh {
				out.visit(StateFresh)
				log.Info("up to date", "ecosystem", string(o.cfg.Ecosystem), "action", string(action),
					"params", o.params.String(), "fingerprint", out.Fingerprint.Short())
				o.emit(action, ProgressSkipped, "up to date")
				return out, nil
			}
		}
		out.visit(StateStale)
	}

	if err := o.ensureToolchain(ctx, res.variant, action); err != nil {
		return fail(err)
	}

	result, warnings, err := o.dispatcher.Run(ctx, res.variant, action, o.params, args)
	out.Warnings = append(out.Warnings, warnings...)
	out.ExitCode = result.ExitCode
	if err != nil {
		return fail(err)
	}

	if action.Cached() {
		if err := o.record(out, action, before); err != nil {
			return fail(err)
		}
	}
	out.visit(StateDone)
	o.emit(action, ProgressComplete, "")
	return out, nil
}

// record writes the stamp after a successful dispatch. The stamp keeps the
// fingerprint taken before the tool ran, so an input edited during the run
// stays stale. The one exception is a run whose only changes are lockfiles
// the tool wrote itself (npm install creating package-lock.json): the
// fingerprint is taken again so the next run sees the project as recorded.
func (o *Orchestrator) record(out *Outcome, action dispatch.Action, before map[string]string) error {
	res, err := o.resolve()
	if err != nil {
		return fmt.Errorf("re-scanning after %s: %w", action, err)
	}
	paths, err := o.inputs(res, action)
	if err != nil {
		return err
	}
	checked := append([]string(nil), paths...)
	for p := range before {
		checked = append(checked, p)
	}
	after, err := o.engine.Digests(o.cfg.Root, checked)
	if err != nil {
		return err
	}

	if changed := fingerprint.Changed(before, after); len(changed) > 0 {
		if onlyLockfiles(changed, detect.Lockfiles(o.rules)) {
			fp, err := o.engine.Compute(res.desc, res.variant, o.params, paths)
			if err != nil {
				return err
			}
			out.Fingerprint = fp
			out.Variant = res.variant
		} else {
			log.Info("inputs changed while the tool ran; keeping them stale",
				"ecosystem", string(o.cfg.Ecosystem), "action", string(action), "paths", changed)
		}
	}

	return o.stamps.Write(out.StampKey, stamp.Record{
		Ecosystem:   string(o.cfg.Ecosystem),
		Action:      string(action),
		Key:         out.StampKey,
		Fingerprint: out.Fingerprint,
		Variant:     out.Variant.Name(),
		Params:      o.params,
	})
}

func onlyLockfiles(paths []string, lockfiles map[string]bool) bool {
	for _, p := range paths {
		if !lockfiles[p] {
			return false
		}
	}
	return true
}

func (o *Orchestrator) fingerprintFor(res resolution, action dispatch.Action, params detect.Params) (fingerprint.Value, error) {
	paths, err := o.inputs(res, action)
	if err != nil {
		return "", err
	}
	return o.engine.Compute(res.desc, res.variant, params, paths)
}

// inputs lists the root-relative paths the fingerprint of action covers:
// the watched markers, plus the sources for build.
func (o *Orchestrator) inputs(res resolution, action dispatch.Action) ([]string, error) {
	paths := append([]string(nil), res.desc.Watched...)
	if action == dispatch.ActionBuild {
		sources, err := o.sources()
		if err != nil {
			return nil, err
		}
		paths = append(paths, sources...)
	}
	return paths, nil
}

// sources expands the build inputs, skipping artifact directories.
func (o *Orchestrator) sources() ([]string, error) {
	globs := o.cfg.SourceGlobs
	if len(globs) == 0 {
		globs = o.rules.SourceGlobs()
	}
	return detect.ExpandSources(o.cfg.Root, globs, detect.SkipDirsFor(o.rules, o.cfg.OutputDir))
}

func (o *Orchestrator) ensureToolchain(ctx context.Context, v detect.ToolVariant, action dispatch.Action) error {
	if o.toolchains == nil || v.Kind != detect.KindCargo {
		return nil
	}
	_, err := o.toolchains.Ensure(ctx, toolchain.Request{
		Toolchain:  v.Toolchain,
		Target:     v.Target,
		Components: toolchain.ComponentsFor(string(action)),
	})
	return err
}

func (o *Orchestrator) emit(action dispatch.Action, status ProgressStatus, msg string) {
	if o.cfg.OnProgress == nil {
		return
	}
	o.cfg.OnProgress(ProgressEvent{Ecosystem: o.cfg.Ecosystem, Action: action, Status: status, Message: msg})
}
