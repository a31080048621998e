package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/stamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	t    *testing.T
	root string
	mock *invoke.Mock
}

func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	p := &project{t: t, root: t.TempDir(), mock: invoke.NewMock()}
	for name, content := range files {
		p.write(name, content)
	}
	return p
}

func (p *project) write(name, content string) {
	p.t.Helper()
	path := filepath.Join(p.root, filepath.FromSlash(name))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
}

func (p *project) exists(name string) bool {
	_, err := os.Stat(filepath.Join(p.root, filepath.FromSlash(name)))
	return err == nil
}

func (p *project) orch(eco detect.Ecosystem, mutate ...func(*Config)) *Orchestrator {
	p.t.Helper()
	cfg := Config{Root: p.root, Ecosystem: eco, Invoker: p.mock, LintStrict: true}
	for _, m := range mutate {
		m(&cfg)
	}
	o, err := New(cfg)
	require.NoError(p.t, err)
	return o
}

func withParams(params detect.Params) func(*Config) {
	return func(c *Config) { c.Params = params }
}

func warningCodes(ws []diag.Warning) []diag.WarningCode {
	out := make([]diag.WarningCode, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Scenario 1: a strict pnpm lockfile selects pnpm in frozen mode, writes a
// stamp, and a second install is a no-op.
func TestInstall_PnpmFrozenThenNoOp(t *testing.T) {
	p := newProject(t, map[string]string{detect.PnpmLock: "lockfileVersion: '9.0'\n"})
	o := p.orch(detect.EcosystemNode)
	ctx := context.Background()

	out, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.Equal(t, detect.KindPnpm, out.Variant.Kind)
	assert.Equal(t, []State{StateUninitialized, StateToolResolved, StateStale, StateDone}, out.States)

	calls := p.mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pnpm install --frozen-lockfile", calls[0].String())
	assert.Equal(t, p.root, calls[0].Dir)

	recs, err := o.Stamps()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.Fingerprint, recs[0].Fingerprint)
	assert.Equal(t, "pnpm", recs[0].Variant)

	again, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.True(t, again.Skipped())
	assert.Equal(t, []State{StateUninitialized, StateToolResolved, StateFresh}, again.States)
	assert.Equal(t, 1, p.mock.CallCount("pnpm"), "idempotent: one dispatch for two installs")
}

// Scenario 2: the yarn linker comes from .yarnrc.yml, not the pnp default.
func TestInstall_YarnLinkerFromConfig(t *testing.T) {
	p := newProject(t, map[string]string{
		detect.YarnLock:    "# yarn lockfile v1\n",
		detect.PackageJSON: `{"name":"app"}`,
		detect.YarnRC:      "nodeLinker: node-modules\n",
	})
	out, err := p.orch(detect.EcosystemNode).Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.Equal(t, detect.KindYarn, out.Variant.Kind)
	assert.Equal(t, detect.LinkerNodeModules, out.Variant.Linker)
	assert.Equal(t, "yarn install --immutable", p.mock.Calls()[0].String())
}

// Scenario 3: a bare manifest installs in mutable mode, warns, and stamps.
func TestInstall_BareManifestWarnsAndStamps(t *testing.T) {
	p := newProject(t, map[string]string{detect.PackageJSON: `{"name":"app"}`})
	// npm writes a lockfile on a mutable install.
	p.mock.OnRun = func(inv invoke.Invocation) {
		if inv.Name == "npm" && len(inv.Args) > 0 && inv.Args[0] == "install" {
			p.write(detect.NpmLock, `{"lockfileVersion":3}`)
		}
	}
	o := p.orch(detect.EcosystemNode)

	out, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.Final())
	assert.Contains(t, warningCodes(out.Warnings), diag.WarnNoLockfile)
	assert.Equal(t, "npm install", p.mock.Calls()[0].String())

	recs, err := o.Stamps()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	again, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.True(t, again.Skipped(), "the lockfile npm generated is part of the recorded state")
	assert.Equal(t, 1, p.mock.CallCount("npm"))
}

// Scenario 4: distinct feature sets keep distinct stamps; returning to the
// first set is a cache hit.
func TestBuild_FeatureSetsStampSeparately(t *testing.T) {
	p := newProject(t, map[string]string{
		detect.CargoToml: "[package]\nname = \"demo\"\nversion = \"0.1.0\"\n",
		detect.CargoLock: "version = 3\n",
		"src/main.rs":    "fn main() {}\n",
	})
	ctx := context.Background()
	none := detect.Params{}
	foobar := detect.Params{Features: []string{"foo", "bar"}}

	_, err := p.orch(detect.EcosystemRust, withParams(none)).Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)
	_, err = p.orch(detect.EcosystemRust, withParams(foobar)).Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)

	var builds []invoke.Invocation
	for _, c := range p.mock.Calls() {
		if c.Name == "cargo" && len(c.Args) > 1 && c.Args[1] == "build" {
			builds = append(builds, c)
		}
	}
	require.Len(t, builds, 2)
	assert.Contains(t, builds[1].Args, "bar,foo")

	o := p.orch(detect.EcosystemRust, withParams(none))
	recs, err := o.Stamps()
	require.NoError(t, err)
	buildKeys := map[string]bool{}
	for _, r := range recs {
		if r.Action == string(dispatch.ActionBuild) {
			buildKeys[r.Key] = true
		}
	}
	assert.Len(t, buildKeys, 2)
	assert.True(t, buildKeys[stamp.ActionKey("build", none)])
	assert.True(t, buildKeys[stamp.ActionKey("build", foobar)])

	out, err := o.Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)
	assert.True(t, out.Skipped(), "back to {} is a cache hit, not a rebuild")
	require.Len(t, out.Prereqs, 1)
	assert.True(t, out.Prereqs[0].Skipped())
}

// Scenario 5: poetry missing falls back with a warning; pnpm missing is
// fatal.
func TestInstall_FallbackAsymmetry(t *testing.T) {
	t.Run("python falls back", func(t *testing.T) {
		p := newProject(t, map[string]string{
			detect.PoetryLock:    "# poetry\n",
			detect.PyProjectToml: "[tool.poetry]\nname = \"demo\"\n",
		})
		p.mock.Missing("poetry")
		o := p.orch(detect.EcosystemPython)

		out, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
		require.NoError(t, err)
		assert.Equal(t, detect.KindEditableFallback, out.Variant.Kind)
		assert.Contains(t, warningCodes(out.Warnings), diag.WarnFallbackProceeded)
		assert.NotContains(t, warningCodes(out.Warnings), diag.WarnNoLockfile)
		assert.Equal(t, detect.KindPoetry, out.Variant.FallbackFrom)
		assert.Equal(t, "python3 -m pip install -e .", p.mock.Calls()[0].String())
		assert.Equal(t, StateDone, out.Final())
	})

	t.Run("node is fatal", func(t *testing.T) {
		p := newProject(t, map[string]string{detect.PnpmLock: "", detect.PackageJSON: "{}"})
		p.mock.Missing("pnpm")
		o := p.orch(detect.EcosystemNode)

		out, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
		var missing *diag.MissingToolBinaryError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "pnpm", missing.Tool)
		assert.Equal(t, StateFailed, out.Final())
		assert.Empty(t, p.mock.Calls(), "npm is never tried in place of pnpm")
		assert.Equal(t, 1, diag.ExitCode(err))

		recs, err := o.Stamps()
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

// Scenario 6: clean removes artifacts and stamps; the next install runs the
// tool again although nothing watched changed.
func TestClean_ThenInstallReruns(t *testing.T) {
	p := newProject(t, map[string]string{
		detect.PnpmLock:                  "",
		detect.PackageJSON:               "{}",
		"node_modules/left-pad/index.js": "module.exports = 1\n",
		".pnp.cjs":                       "",
	})
	o := p.orch(detect.EcosystemNode)
	ctx := context.Background()

	_, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)

	out, err := o.Do(ctx, dispatch.ActionClean, nil)
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, out.Final())
	assert.ElementsMatch(t, []string{"node_modules", ".pnp.cjs"}, out.Removed)
	assert.False(t, p.exists("node_modules"))
	assert.False(t, p.exists(".pnp.cjs"))
	assert.True(t, p.exists(detect.PnpmLock), "markers are never removed")

	recs, err := o.Stamps()
	require.NoError(t, err)
	assert.Empty(t, recs)

	again, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, again.Final())
	assert.Equal(t, 2, p.mock.CallCount("pnpm"))
}

func TestReinstall_EquivalentToCleanThenInstall(t *testing.T) {
	p := newProject(t, map[string]string{detect.NpmLock: "{}", detect.PackageJSON: "{}"})
	o := p.orch(detect.EcosystemNode)
	ctx := context.Background()

	_, err := o.Do(ctx, dispatch.ActionClean, nil)
	require.NoError(t, err)
	viaClean, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)

	reinstalled, err := o.Do(ctx, dispatch.ActionReinstall, nil)
	require.NoError(t, err)
	assert.Equal(t, viaClean.Fingerprint, reinstalled.Fingerprint)
	assert.Equal(t, StateDone, reinstalled.Final())
	assert.NotContains(t, reinstalled.States, StateFresh, "the freshness check is bypassed")
	require.NotEmpty(t, reinstalled.Prereqs)
	assert.Equal(t, dispatch.ActionClean, reinstalled.Prereqs[0].Action)
	assert.Equal(t, 2, p.mock.CallCount("npm"))
}

func TestInstall_MarkerChangeMakesStale(t *testing.T) {
	p := newProject(t, map[string]string{detect.NpmLock: `{"v":1}`, detect.PackageJSON: "{}"})
	o := p.orch(detect.EcosystemNode)
	ctx := context.Background()

	_, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)

	p.write(detect.NpmLock, `{"v":2}`)
	out, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.Contains(t, out.States, StateStale)
	assert.Equal(t, 2, p.mock.CallCount("npm"))
}

func TestInstall_ExternalFailureLeavesStampUntouched(t *testing.T) {
	p := newProject(t, map[string]string{detect.PnpmLock: "", detect.PackageJSON: "{}"})
	p.mock.Exit("pnpm install", 3)
	o := p.orch(detect.EcosystemNode)
	ctx := context.Background()

	out, err := o.Do(ctx, dispatch.ActionInstall, nil)
	var toolErr *diag.ExternalToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 3, diag.ExitCode(err))
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, StateFailed, out.Final())

	recs, err := o.Stamps()
	require.NoError(t, err)
	assert.Empty(t, recs)

	p.mock.Exit("pnpm install", 0)
	out, err = o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.Final(), "a failed action is safely retryable")
}

func TestInstall_MissingManifest(t *testing.T) {
	p := newProject(t, map[string]string{"README.md": "hello"})
	out, err := p.orch(detect.EcosystemPython).Do(context.Background(), dispatch.ActionInstall, nil)
	var missing *diag.MissingManifestError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []State{StateUninitialized, StateFailed}, out.States)
	assert.Empty(t, p.mock.Calls())
}

func TestDo_UnsupportedAction(t *testing.T) {
	p := newProject(t, map[string]string{detect.PackageJSON: "{}"})
	_, err := p.orch(detect.EcosystemNode).Do(context.Background(), dispatch.ActionClippy, nil)
	var unsupported *dispatch.UnsupportedActionError
	require.ErrorAs(t, err, &unsupported)
}

func TestRust_ToolchainEnsuredOnceAndClearedByClean(t *testing.T) {
	p := newProject(t, map[string]string{
		detect.CargoToml:         "[package]\nname = \"demo\"\n",
		detect.CargoLock:         "",
		detect.RustToolchainToml: "[toolchain]\nchannel = \"1.80.0\"\n",
	})
	o := p.orch(detect.EcosystemRust)
	ctx := context.Background()

	_, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	calls := p.mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "rustup toolchain install 1.80.0 --profile minimal", calls[0].String())
	assert.Equal(t, "cargo +1.80.0 fetch --locked", calls[1].String())

	_, err = o.Do(ctx, dispatch.ActionCheck, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.mock.CallCount("rustup"), "toolchain stamp skips rustup")

	tcs, err := o.ToolchainStamps()
	require.NoError(t, err)
	assert.Len(t, tcs, 1)

	_, err = o.Do(ctx, dispatch.ActionClean, nil)
	require.NoError(t, err)
	tcs, err = o.ToolchainStamps()
	require.NoError(t, err)
	assert.Empty(t, tcs)
}

func TestRust_MissingRustupIsFatal(t *testing.T) {
	p := newProject(t, map[string]string{detect.CargoToml: "", detect.CargoLock: ""})
	p.mock.Missing("rustup")

	_, err := p.orch(detect.EcosystemRust).Do(context.Background(), dispatch.ActionInstall, nil)
	var missing *diag.MissingToolBinaryError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "rustup", missing.Tool)
	assert.Zero(t, p.mock.CallCount("cargo"))
}

func TestRust_ClippyInstallsComponent(t *testing.T) {
	p := newProject(t, map[string]string{detect.CargoToml: "", detect.CargoLock: ""})
	_, err := p.orch(detect.EcosystemRust).Do(context.Background(), dispatch.ActionClippy, nil)
	require.NoError(t, err)

	var sawComponent bool
	for _, c := range p.mock.Calls() {
		if c.String() == "rustup component add --toolchain stable clippy" {
			sawComponent = true
		}
	}
	assert.True(t, sawComponent)
	last := p.mock.Calls()[len(p.mock.Calls())-1]
	assert.Equal(t, "cargo +stable clippy --locked -- -D warnings", last.String())
}

func TestBuild_SourceEditRebuildsArtifactsDoNot(t *testing.T) {
	p := newProject(t, map[string]string{
		detect.CargoToml:            "",
		detect.CargoLock:            "",
		"src/main.rs":               "fn main() {}\n",
		"target/debug/build.rs.out": "",
	})
	o := p.orch(detect.EcosystemRust)
	ctx := context.Background()

	_, err := o.Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)

	p.write("target/debug/generated.rs", "// output")
	out, err := o.Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)
	assert.True(t, out.Skipped(), "artifact directory changes are not build inputs")

	p.write("src/main.rs", "fn main() { println!(\"hi\"); }\n")
	out, err = o.Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.Final())
}

func TestOutputDir_HoldsStamps(t *testing.T) {
	p := newProject(t, map[string]string{detect.CargoToml: "", detect.CargoLock: ""})
	o := p.orch(detect.EcosystemRust, func(c *Config) { c.OutputDir = "out" })

	_, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.True(t, p.exists("out/.polydeps/rust"))
	assert.False(t, p.exists(".polydeps"))

	p.write("out/debug/app", "bin")
	out, err := o.Do(context.Background(), dispatch.ActionClean, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Removed, "out/debug")
	assert.False(t, p.exists("out/debug"))
	assert.True(t, p.exists("out/.polydeps"), "the state directory outlives a clean")
}

func TestClean_SharedOutputDirKeepsOtherNamespaces(t *testing.T) {
	p := newProject(t, map[string]string{
		detect.CargoToml:     "",
		detect.CargoLock:     "",
		detect.PackageJSON:   "{}",
		detect.PnpmLock:      "",
		detect.PoetryLock:    "",
		detect.PyProjectToml: "",
	})
	shared := func(c *Config) { c.OutputDir = "out" }
	ctx := context.Background()
	node := p.orch(detect.EcosystemNode, shared)
	rust := p.orch(detect.EcosystemRust, shared)
	python := p.orch(detect.EcosystemPython, shared)

	for _, o := range []*Orchestrator{node, rust, python} {
		_, err := o.Do(ctx, dispatch.ActionInstall, nil)
		require.NoError(t, err)
	}
	p.write("out/debug/app", "bin")
	p.write("out/demo-0.1.0-py3-none-any.whl", "wheel")

	out, err := node.Do(ctx, dispatch.ActionClean, nil)
	require.NoError(t, err)
	assert.NotContains(t, out.Removed, "out")
	assert.True(t, p.exists("out/debug/app"))
	assert.True(t, p.exists("out/demo-0.1.0-py3-none-any.whl"))
	assert.True(t, p.exists("out/.polydeps/rust"))
	assert.True(t, p.exists("out/.polydeps/python"))

	out, err = python.Do(ctx, dispatch.ActionClean, nil)
	require.NoError(t, err)
	assert.False(t, p.exists("out/demo-0.1.0-py3-none-any.whl"))
	assert.True(t, p.exists("out/debug/app"))
	assert.True(t, p.exists("out/.polydeps/rust"))

	install, err := rust.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.True(t, install.Skipped(), "rust stamps survive the other cleans")
}

func TestFingerprintFor_MatchesRecorded(t *testing.T) {
	p := newProject(t, map[string]string{detect.PnpmLock: "", detect.PackageJSON: "{}"})
	o := p.orch(detect.EcosystemNode)

	out, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)

	fp, err := o.FingerprintFor(dispatch.ActionInstall, detect.Params{})
	require.NoError(t, err)
	assert.Equal(t, out.Fingerprint, fp)
}

func TestProgressEvents(t *testing.T) {
	p := newProject(t, map[string]string{detect.PnpmLock: "", detect.PackageJSON: "{}"})
	var events []ProgressEvent
	o := p.orch(detect.EcosystemNode, func(c *Config) {
		c.OnProgress = func(ev ProgressEvent) { events = append(events, ev) }
	})
	ctx := context.Background()

	_, err := o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)
	_, err = o.Do(ctx, dispatch.ActionInstall, nil)
	require.NoError(t, err)

	var statuses []ProgressStatus
	for _, ev := range events {
		statuses = append(statuses, ev.Status)
	}
	assert.Equal(t, []ProgressStatus{ProgressWorking, ProgressComplete, ProgressWorking, ProgressSkipped}, statuses)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Ecosystem: detect.EcosystemNode})
	require.Error(t, err)
	_, err = New(Config{Root: t.TempDir(), Ecosystem: "go"})
	require.Error(t, err)
}

func TestBuild_SourceEditedDuringBuildStaysStale(t *testing.T) {
	p := newProject(t, map[string]string{
		detect.CargoToml: "",
		detect.CargoLock: "",
		"src/main.rs":    "fn main() {}\n",
	})
	edited := false
	p.mock.OnRun = func(inv invoke.Invocation) {
		if inv.Name == "cargo" && !edited && len(inv.Args) > 1 && inv.Args[1] == "build" {
			edited = true
			p.write("src/main.rs", "fn main() { todo!() }\n")
		}
	}
	o := p.orch(detect.EcosystemRust)
	ctx := context.Background()

	first, err := o.Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)

	recs, err := o.Stamps()
	require.NoError(t, err)
	for _, r := range recs {
		if r.Action == string(dispatch.ActionBuild) {
			assert.Equal(t, first.Fingerprint, r.Fingerprint, "the stamp holds the inputs the build saw")
		}
	}

	second, err := o.Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)
	assert.False(t, second.Skipped())
	assert.Equal(t, StateDone, second.Final())

	third, err := o.Do(ctx, dispatch.ActionBuild, nil)
	require.NoError(t, err)
	assert.True(t, third.Skipped())
}

func TestInstall_LockfilePlusManifestEditStaysStale(t *testing.T) {
	p := newProject(t, map[string]string{detect.PackageJSON: `{"name":"app"}`})
	p.mock.OnRun = func(inv invoke.Invocation) {
		if inv.Name == "npm" && len(inv.Args) > 0 && inv.Args[0] == "install" {
			p.write(detect.NpmLock, `{"lockfileVersion":3}`)
			p.write(detect.PackageJSON, `{"name":"app","dependencies":{"left-pad":"1"}}`)
		}
	}
	o := p.orch(detect.EcosystemNode)

	_, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)

	again, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)
	assert.False(t, again.Skipped(), "a manifest edit during install is not recorded as installed")
	assert.Equal(t, "npm ci", p.mock.Calls()[1].String())
}
