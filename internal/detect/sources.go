package detect

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultSkipDirs are directory patterns never walked for sources.
var DefaultSkipDirs = []string{
	"**/.git",
	"**/node_modules",
	"**/.venv",
	"**/venv",
	"**/__pycache__",
	"**/target",
	"**/.polydeps",
	"**/.yarn",
}

// ExpandSources walks root and returns the root-relative files matching any
// include pattern. Directories matching a skip pattern are pruned.
func ExpandSources(root string, include, skipDirs []string) ([]string, error) {
	if len(include) == 0 {
		return nil, nil
	}
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid source pattern %q", p)
		}
	}

	var out []string
	err := fs.WalkDir(os.DirFS(root), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			for _, skip := range skipDirs {
				if ok, _ := doublestar.Match(skip, p); ok {
					return fs.SkipDir
				}
			}
			return nil
		}
		for _, inc := range include {
			if ok, _ := doublestar.Match(inc, p); ok {
				out = append(out, p)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// SkipDirsFor extends DefaultSkipDirs with the ecosystem's artifact paths so
// build outputs never feed back into the build fingerprint.
func SkipDirsFor(rules Rules, outputDir string) []string {
	skip := append([]string(nil), DefaultSkipDirs...)
	if outputDir != "" && !filepath.IsAbs(outputDir) {
		skip = append(skip, filepath.ToSlash(filepath.Clean(outputDir)))
	}
	for _, p := range rules.ArtifactPaths(outputDir) {
		if filepath.IsAbs(p) {
			continue
		}
		skip = append(skip, filepath.ToSlash(p))
	}
	return skip
}
