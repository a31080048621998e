package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrch(t *testing.T, root string, eco detect.Ecosystem, params detect.Params) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(orchestrator.Config{
		Root:      root,
		Ecosystem: eco,
		Params:    params,
		Invoker:   invoke.NewMock(),
	})
	require.NoError(t, err)
	return o
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReport_NeverRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, detect.PnpmLock, "")
	writeFile(t, root, detect.PackageJSON, "{}")

	st, err := Report(context.Background(), newOrch(t, root, detect.EcosystemNode, detect.Params{}))
	require.NoError(t, err)
	assert.Equal(t, "pnpm", st.Variant)
	require.Len(t, st.Actions, 2)
	for _, a := range st.Actions {
		assert.True(t, a.Current)
		assert.False(t, a.Recorded)
		assert.False(t, a.Fresh)
		assert.NotEmpty(t, a.Now)
	}
	assert.Contains(t, Format(st), "never run")
}

func TestReport_FreshThenStale(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, detect.NpmLock, `{"v":1}`)
	writeFile(t, root, detect.PackageJSON, "{}")
	o := newOrch(t, root, detect.EcosystemNode, detect.Params{})

	_, err := o.Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)

	st, err := Report(context.Background(), o)
	require.NoError(t, err)
	install := st.Actions[0]
	assert.Equal(t, dispatch.ActionInstall, install.Action)
	assert.True(t, install.Recorded)
	assert.True(t, install.Fresh)
	assert.Equal(t, install.Stamped, install.Now)
	assert.False(t, install.RecordedAt.IsZero())
	assert.Contains(t, Format(st), "up to date")

	writeFile(t, root, detect.NpmLock, `{"v":2}`)
	st, err = Report(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, st.Actions[0].Recorded)
	assert.False(t, st.Actions[0].Fresh)
	assert.Contains(t, Format(st), "stale")
}

func TestReport_OtherParamTuplesListed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, detect.CargoToml, "[package]\nname = \"demo\"\n")
	writeFile(t, root, detect.CargoLock, "")

	release := detect.Params{Profile: detect.ProfileRelease}
	_, err := newOrch(t, root, detect.EcosystemRust, release).Do(context.Background(), dispatch.ActionInstall, nil)
	require.NoError(t, err)

	st, err := Report(context.Background(), newOrch(t, root, detect.EcosystemRust, detect.Params{}))
	require.NoError(t, err)
	require.Len(t, st.Actions, 3)
	other := st.Actions[2]
	assert.False(t, other.Current)
	assert.Equal(t, detect.ProfileRelease, other.Params.Profile)
	assert.True(t, other.Fresh)
	assert.Equal(t, []string{"stable"}, st.Toolchains)
}

func TestReport_MissingManifest(t *testing.T) {
	st, err := Report(context.Background(), newOrch(t, t.TempDir(), detect.EcosystemPython, detect.Params{}))
	require.NoError(t, err)
	assert.NotEmpty(t, st.Error)
	assert.Empty(t, st.Actions)
	assert.Contains(t, Format(st), "python:")
}
