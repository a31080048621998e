package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/stamp"
)

// Clean removes the ecosystem's artifact locations and every stamp in its
// namespace (rust also drops its toolchain stamps), returning the state
// machine to uninitialized. Missing artifacts are not an error.
func (o *Orchestrator) Clean(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Ecosystem: o.cfg.Ecosystem, Action: dispatch.ActionClean, Params: o.params}
	o.emit(dispatch.ActionClean, ProgressWorking, "")

	fail := func(err error) (*Outcome, error) {
		out.visit(StateFailed)
		o.emit(dispatch.ActionClean, ProgressFailed, err.Error())
		return out, fmt.Errorf("%s clean: %w", o.cfg.Ecosystem, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	removed, err := o.removeArtifacts()
	out.Removed = removed
	if err != nil {
		return fail(err)
	}

	if err := o.stamps.ClearAll(); err != nil {
		return fail(err)
	}
	if o.toolStamps != nil {
		if err := o.toolStamps.ClearAll(); err != nil {
			return fail(err)
		}
	}

	log.Info("cleaned", "ecosystem", string(o.cfg.Ecosystem), "removed", len(removed))
	out.visit(StateUninitialized)
	o.emit(dispatch.ActionClean, ProgressComplete, fmt.Sprintf("%d paths removed", len(removed)))
	return out, nil
}

// removeArtifacts expands the artifact patterns and deletes every match.
// Relative patterns are matched under the root, absolute ones (an absolute
// output directory) against the filesystem. The shared state directory is
// never removed here: other namespaces keep their stamps in it.
func (o *Orchestrator) removeArtifacts() ([]string, error) {
	fsys := os.DirFS(o.cfg.Root)
	stateDir := filepath.Clean(stamp.StateDir(o.cfg.Root, o.cfg.OutputDir))
	seen := make(map[string]bool)
	var removed []string

	for _, pattern := range o.rules.ArtifactPaths(o.cfg.OutputDir) {
		var (
			matches []string
			err     error
		)
		if filepath.IsAbs(pattern) {
			matches, err = doublestar.FilepathGlob(pattern, doublestar.WithNoFollow())
		} else {
			matches, err = doublestar.Glob(fsys, filepath.ToSlash(pattern), doublestar.WithNoFollow())
		}
		if err != nil {
			return removed, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, m := range matches {
			path := m
			if !filepath.IsAbs(pattern) {
				path = filepath.Join(o.cfg.Root, filepath.FromSlash(m))
			}
			if seen[m] || m == "." || filepath.Clean(path) == stateDir {
				continue
			}
			seen[m] = true
			if err := os.RemoveAll(path); err != nil {
				return removed, fmt.Errorf("removing %s: %w", m, err)
			}
			removed = append(removed, m)
		}
	}
	return removed, nil
}
