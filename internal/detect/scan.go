package detect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Rules is the ecosystem-specific half of detection.
type Rules interface {
	Ecosystem() Ecosystem

	// Candidates lists the fixed marker files, highest priority first.
	Candidates() []Candidate

	// Members discovers workspace member manifests from the present markers.
	// Returned paths are root-relative; they need not exist.
	Members(fsys fs.FS, desc ProjectDescriptor) ([]string, error)

	// Detect picks the tool variant. It must be a pure function of desc and
	// params.
	Detect(desc ProjectDescriptor, params Params) (ToolVariant, error)

	// Fallback returns the variant to use when v's binary is missing, if
	// the ecosystem tolerates that.
	Fallback(v ToolVariant, desc ProjectDescriptor) (ToolVariant, bool)

	// ArtifactPaths lists root-relative paths or doublestar patterns that
	// clean removes. outputDir is the configured artifact directory or "".
	ArtifactPaths(outputDir string) []string

	// SourceGlobs are the default extra inputs watched by build.
	SourceGlobs() []string
}

// Scan reads the marker candidates of rules under root and returns the
// existence-filtered descriptor. It is the only filesystem access detection
// performs.
func Scan(root string, rules Rules) (ProjectDescriptor, error) {
	fsys := os.DirFS(root)
	desc := ProjectDescriptor{Root: root, Ecosystem: rules.Ecosystem()}

	watched := make(map[string]bool)
	for _, c := range rules.Candidates() {
		watched[c.Path] = true
		m, ok, err := readMarker(fsys, c.Path, c.Role, c.Load)
		if err != nil {
			return ProjectDescriptor{}, err
		}
		if ok {
			desc.Markers = append(desc.Markers, m)
		}
	}

	members, err := rules.Members(fsys, desc)
	if err != nil {
		return ProjectDescriptor{}, fmt.Errorf("%s: discovering workspace members: %w", rules.Ecosystem(), err)
	}
	for _, p := range members {
		if watched[p] {
			continue
		}
		watched[p] = true
		m, ok, err := readMarker(fsys, p, RoleWorkspaceMember, false)
		if err != nil {
			return ProjectDescriptor{}, err
		}
		if ok {
			desc.Markers = append(desc.Markers, m)
		}
	}

	desc.Watched = make([]string, 0, len(watched))
	for p := range watched {
		desc.Watched = append(desc.Watched, p)
	}
	sort.Strings(desc.Watched)
	sort.SliceStable(desc.Markers, func(i, j int) bool { return desc.Markers[i].Path < desc.Markers[j].Path })
	return desc, nil
}

func readMarker(fsys fs.FS, p string, role Role, load bool) (Marker, bool, error) {
	info, err := fs.Stat(fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Marker{}, false, nil
		}
		return Marker{}, false, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return Marker{}, false, nil
	}
	m := Marker{Path: p, Role: role}
	if load {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return Marker{}, false, fmt.Errorf("reading %s: %w", p, err)
		}
		m.Data = data
	}
	return m, true, nil
}

// expandMembers resolves workspace member directory globs to the manifest
// file inside each match. Patterns prefixed with "!" and the exclude list
// remove directories.
func expandMembers(fsys fs.FS, patterns, exclude []string, manifest string) ([]string, error) {
	var excluded []string
	excluded = append(excluded, exclude...)

	found := make(map[string]bool)
	for _, pattern := range patterns {
		if len(pattern) > 0 && pattern[0] == '!' {
			excluded = append(excluded, pattern[1:])
			continue
		}
		pattern = path.Clean(pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid member pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, path.Join(pattern, manifest))
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			// A literal member that is missing is still watched: its
			// appearance must change the fingerprint.
			matches = []string{path.Join(pattern, manifest)}
		}
		for _, m := range matches {
			found[m] = true
		}
	}

	out := make([]string, 0, len(found))
	for m := range found {
		dir := path.Dir(m)
		skip := false
		for _, ex := range excluded {
			if ok, _ := doublestar.Match(path.Clean(ex), dir); ok {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// Lockfiles returns the strict lockfile paths of r. These are the markers a
// package manager may write itself during install.
func Lockfiles(r Rules) map[string]bool {
	out := make(map[string]bool)
	for _, c := range r.Candidates() {
		if c.Role == RoleStrictLock {
			out[c.Path] = true
		}
	}
	return out
}
