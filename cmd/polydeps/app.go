package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dusk-indust/polydeps/internal/config"
	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/logger"
	"github.com/dusk-indust/polydeps/internal/orchestrator"
	"github.com/spf13/cobra"
)

// app carries what every command shares. Tests replace the invoker and
// the streams.
type app struct {
	version   string
	invoker   invoke.Invoker // nil means real processes
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)

	flags globalFlags
}

type globalFlags struct {
	dir          string
	ecosystems   []string
	toolchain    string
	profile      string
	release      bool
	features     []string
	target       string
	outputDir    string
	denyWarnings bool
	parallel     bool
	verbose      bool
	logFormat    string
}

func newApp(version string) *app {
	return &app{
		version:   version,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
	}
}

func (a *app) initLogging() {
	level := slog.LevelInfo
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	logger.Init(logger.Config{Level: level, Format: a.flags.logFormat, Output: a.stderr})
}

// root returns the absolute project directory.
func (a *app) root() (string, error) {
	dir := a.flags.dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving --dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// overrides collects the flags the user actually set.
func (a *app) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	f := cmd.Flags()
	if f.Changed("toolchain") {
		o.Toolchain = &a.flags.toolchain
	}
	if f.Changed("profile") {
		o.Profile = &a.flags.profile
	}
	if a.flags.release {
		release := detect.ProfileRelease
		o.Profile = &release
	}
	if f.Changed("features") {
		o.FeaturesSet = true
		for _, v := range a.flags.features {
			o.Features = append(o.Features, config.SplitList(v)...)
		}
	}
	if f.Changed("target") {
		o.Target = &a.flags.target
	}
	if f.Changed("output-dir") {
		o.OutputDir = &a.flags.outputDir
	}
	if f.Changed("deny-warnings") {
		o.DenyWarnings = &a.flags.denyWarnings
	}
	if f.Changed("ecosystem") {
		o.Ecosystems = a.flags.ecosystems
	}
	return o
}

// session is the resolved configuration of one invocation.
type session struct {
	root       string
	cfg        *config.ProjectConfig
	ecosystems []detect.Ecosystem
	invoker    invoke.Invoker
	onProgress func(orchestrator.ProgressEvent)
}

func (a *app) session(cmd *cobra.Command) (*session, error) {
	root, err := a.root()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(root, a.lookupEnv, a.overrides(cmd))
	if err != nil {
		return nil, err
	}
	ecosystems, err := selectEcosystems(root, cfg.Ecosystems)
	if err != nil {
		return nil, err
	}
	inv := a.invoker
	if inv == nil {
		inv = &invoke.ExecInvoker{Stdin: a.stdin, Stdout: a.stdout, Stderr: a.stderr, WaitDelay: invoke.DefaultWaitDelay}
	}
	return &session{root: root, cfg: cfg, ecosystems: ecosystems, invoker: inv}, nil
}

// selectEcosystems parses explicit names, or detects the ecosystems whose
// manifests are present in root.
func selectEcosystems(root string, names []string) ([]detect.Ecosystem, error) {
	if len(names) > 0 {
		var out []detect.Ecosystem
		seen := make(map[detect.Ecosystem]bool)
		for _, n := range names {
			for _, part := range config.SplitList(n) {
				eco, ok := detect.ParseEcosystem(part)
				if !ok {
					return nil, fmt.Errorf("unknown ecosystem %q (supported: node, rust, python)", part)
				}
				if !seen[eco] {
					seen[eco] = true
					out = append(out, eco)
				}
			}
		}
		return out, nil
	}
	found := detect.DetectEcosystems(root)
	if len(found) == 0 {
		return nil, &diag.MissingManifestError{
			Ecosystem: "any",
			Root:      root,
			Expected:  []string{detect.PackageJSON, detect.CargoToml, detect.PyProjectToml, detect.RequirementsTxt},
		}
	}
	return found, nil
}

func (s *session) params() detect.Params {
	return detect.Params{
		Profile:   s.cfg.Profile,
		Features:  s.cfg.Features,
		Target:    s.cfg.Target,
		Toolchain: s.cfg.Toolchain,
	}
}

func (s *session) open(eco detect.Ecosystem) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(orchestrator.Config{
		Root:        s.root,
		Ecosystem:   eco,
		Params:      s.params(),
		OutputDir:   s.cfg.OutputDir,
		LintStrict:  s.cfg.LintStrict(),
		Python:      s.cfg.PythonBinary(),
		RunScript:   s.cfg.RunScript,
		SourceGlobs: s.cfg.Watch[string(eco)],
		Invoker:     s.invoker,
		OnProgress:  s.onProgress,
	})
}

func (s *session) openAll() ([]*orchestrator.Orchestrator, error) {
	out := make([]*orchestrator.Orchestrator, 0, len(s.ecosystems))
	for _, eco := range s.ecosystems {
		o, err := s.open(eco)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// lockedWriter serializes writes from the progress printer, the logger and
// the summary lines when stderr is an in-memory buffer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// startProgress prints progress events to w until the returned stop
// function is called.
func startProgress(w io.Writer) (func(orchestrator.ProgressEvent), func()) {
	pr := orchestrator.NewProgressReporter()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range pr.Subscribe() {
			fmt.Fprintln(w, orchestrator.FormatProgress(ev))
		}
	}()
	return pr.Emit, func() {
		pr.Close()
		wg.Wait()
	}
}
