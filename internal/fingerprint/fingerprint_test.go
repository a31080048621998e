package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t    *testing.T
	root string
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	f := &fixture{t: t, root: t.TempDir()}
	for name, content := range files {
		f.write(name, content)
	}
	return f
}

func (f *fixture) write(name, content string) {
	f.t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(name))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(f.t, os.WriteFile(p, []byte(content), 0o644))
}

func (f *fixture) compute(rules detect.Rules, params detect.Params, extra ...string) Value {
	f.t.Helper()
	desc, err := detect.Scan(f.root, rules)
	require.NoError(f.t, err)
	v, err := rules.Detect(desc, params)
	require.NoError(f.t, err)
	val, err := New().Compute(desc, v, params, extra)
	require.NoError(f.t, err)
	return val
}

func TestCompute_Stable(t *testing.T) {
	f := newFixture(t, map[string]string{detect.PnpmLock: "lock: 1", detect.PackageJSON: `{"name":"a"}`})
	a := f.compute(detect.NodeRules{}, detect.Params{})
	b := f.compute(detect.NodeRules{}, detect.Params{})
	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64)
	assert.Len(t, a.Short(), 12)
}

func TestCompute_ContentChange(t *testing.T) {
	f := newFixture(t, map[string]string{detect.PnpmLock: "lock: 1", detect.PackageJSON: "{}"})
	before := f.compute(detect.NodeRules{}, detect.Params{})

	f.write(detect.PnpmLock, "lock: 2")
	after := f.compute(detect.NodeRules{}, detect.Params{})
	assert.NotEqual(t, before, after)

	f.write(detect.PnpmLock, "lock: 1")
	assert.Equal(t, before, f.compute(detect.NodeRules{}, detect.Params{}), "restoring content restores the value")
}

func TestCompute_MarkerRemovalIsAChange(t *testing.T) {
	f := newFixture(t, map[string]string{detect.NpmLock: "{}", detect.PackageJSON: "{}", detect.YarnRC: ""})
	before := f.compute(detect.NodeRules{}, detect.Params{})

	require.NoError(t, os.Remove(filepath.Join(f.root, detect.YarnRC)))
	assert.NotEqual(t, before, f.compute(detect.NodeRules{}, detect.Params{}))
}

func TestCompute_EmptyFileDiffersFromAbsent(t *testing.T) {
	f := newFixture(t, map[string]string{detect.PackageJSON: "{}"})
	before := f.compute(detect.NodeRules{}, detect.Params{})
	f.write(detect.YarnRC, "")
	assert.NotEqual(t, before, f.compute(detect.NodeRules{}, detect.Params{}))
}

func TestCompute_ParamsChange(t *testing.T) {
	f := newFixture(t, map[string]string{detect.CargoToml: "[package]\nname = \"x\"\n", detect.CargoLock: ""})
	base := f.compute(detect.RustRules{}, detect.Params{})

	variants := []detect.Params{
		{Profile: detect.ProfileRelease},
		{Features: []string{"foo"}},
		{Target: "wasm32-unknown-unknown"},
		{Toolchain: "nightly"},
	}
	for _, p := range variants {
		t.Run(p.String(), func(t *testing.T) {
			assert.NotEqual(t, base, f.compute(detect.RustRules{}, p))
		})
	}

	assert.Equal(t, base, f.compute(detect.RustRules{}, detect.Params{Profile: detect.ProfileDev}))
}

func TestCompute_ExtraPaths(t *testing.T) {
	f := newFixture(t, map[string]string{detect.CargoToml: "", "src/main.rs": "fn main() {}"})
	before := f.compute(detect.RustRules{}, detect.Params{}, "src/main.rs")

	f.write("src/main.rs", "fn main() { println!() }")
	assert.NotEqual(t, before, f.compute(detect.RustRules{}, detect.Params{}, "src/main.rs"))

	assert.Equal(t,
		f.compute(detect.RustRules{}, detect.Params{}, "src/main.rs"),
		f.compute(detect.RustRules{}, detect.Params{}, "src/main.rs", detect.CargoToml),
		"paths already watched are not counted twice")
}

func TestCompute_WorkspaceMemberEdit(t *testing.T) {
	f := newFixture(t, map[string]string{
		detect.CargoToml:      "[workspace]\nmembers = [\"crates/*\"]\n",
		"crates/a/Cargo.toml": "[package]\nname = \"a\"\n",
	})
	before := f.compute(detect.RustRules{}, detect.Params{})
	f.write("crates/a/Cargo.toml", "[package]\nname = \"a\"\nversion = \"0.2.0\"\n")
	assert.NotEqual(t, before, f.compute(detect.RustRules{}, detect.Params{}))
}

func TestDigests_Changed(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "one", "b.txt": "two"})
	e := New()
	paths := []string{"a.txt", "b.txt", "c.txt"}

	before, err := e.Digests(f.root, paths)
	require.NoError(t, err)
	assert.Equal(t, "", before["c.txt"])
	assert.NotEmpty(t, before["a.txt"])

	f.write("b.txt", "TWO")
	f.write("c.txt", "")
	require.NoError(t, os.Remove(filepath.Join(f.root, "a.txt")))

	after, err := e.Digests(f.root, paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, Changed(before, after))
	assert.Empty(t, Changed(after, after))

	// Absent on one side and unknown on the other is no change.
	assert.Empty(t, Changed(map[string]string{"x": ""}, map[string]string{}))
}
