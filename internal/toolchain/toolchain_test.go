package toolchain

import (
	"context"
	"testing"

	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/stamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, m *invoke.Mock) (*Resolver, *stamp.Store) {
	t.Helper()
	store, err := stamp.NewStore(t.TempDir(), stamp.NamespaceToolchain)
	require.NoError(t, err)
	return New(m, store, t.TempDir()), store
}

func TestEnsure_InstallsThenCaches(t *testing.T) {
	m := invoke.NewMock()
	r, store := newResolver(t, m)
	req := Request{Toolchain: "1.80.0"}

	cached, err := r.Ensure(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, cached)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "rustup", calls[0].Name)
	assert.Equal(t, []string{"toolchain", "install", "1.80.0", "--profile", "minimal"}, calls[0].Args)

	cached, err = r.Ensure(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, m.Calls(), 1, "second ensure skips rustup entirely")

	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1.80.0", recs[0].Params.Toolchain)
}

func TestEnsure_TargetAndComponents(t *testing.T) {
	m := invoke.NewMock()
	r, _ := newResolver(t, m)

	_, err := r.Ensure(context.Background(), Request{
		Toolchain:  "nightly",
		Target:     "wasm32-unknown-unknown",
		Components: []string{"rustfmt", "clippy", "clippy"},
	})
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"target", "add", "--toolchain", "nightly", "wasm32-unknown-unknown"}, calls[1].Args)
	assert.Equal(t, []string{"component", "add", "--toolchain", "nightly", "clippy", "rustfmt"}, calls[2].Args)
}

func TestEnsure_DistinctTargetsStampSeparately(t *testing.T) {
	m := invoke.NewMock()
	r, _ := newResolver(t, m)
	ctx := context.Background()

	_, err := r.Ensure(ctx, Request{Toolchain: "stable"})
	require.NoError(t, err)
	cached, err := r.Ensure(ctx, Request{Toolchain: "stable", Target: "aarch64-unknown-linux-gnu"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3, m.CallCount("rustup"))
}

func TestEnsure_MissingRustup(t *testing.T) {
	m := invoke.NewMock().Missing("rustup")
	r, store := newResolver(t, m)

	_, err := r.Ensure(context.Background(), Request{Toolchain: "stable"})
	var missing *diag.MissingToolBinaryError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "rustup", missing.Tool)
	assert.Contains(t, err.Error(), "https://rustup.rs")
	assert.Empty(t, m.Calls())

	recs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEnsure_InstallFailureLeavesNoStamp(t *testing.T) {
	m := invoke.NewMock().Exit("rustup target", 1)
	r, store := newResolver(t, m)

	_, err := r.Ensure(context.Background(), Request{Toolchain: "stable", Target: "bogus-target"})
	var installErr *diag.ToolchainInstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, "target add", installErr.Step)
	assert.Equal(t, 1, diag.ExitCode(err))

	recs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, recs)

	m.Exit("rustup target", 0)
	cached, err := r.Ensure(context.Background(), Request{Toolchain: "stable", Target: "bogus-target"})
	require.NoError(t, err)
	assert.False(t, cached, "failed attempts are retried from scratch")
}

func TestRequest_Key(t *testing.T) {
	a := Request{Toolchain: "stable", Components: []string{"clippy", "rustfmt"}}
	b := Request{Components: []string{"rustfmt", "clippy"}}
	assert.Equal(t, a.Key(), b.Key(), "default toolchain and component order do not matter")
	assert.NotEqual(t, a.Key(), Request{Toolchain: "stable"}.Key())
	assert.Regexp(t, `^toolchain-[0-9a-f]{16}$`, a.Key())
	assert.Equal(t, "stable [clippy,rustfmt]", a.String())
}

func TestComponentsFor(t *testing.T) {
	assert.Equal(t, []string{"clippy"}, ComponentsFor("clippy-fix"))
	assert.Equal(t, []string{"rustfmt"}, ComponentsFor("fmt-check"))
	assert.Nil(t, ComponentsFor("build"))
}
