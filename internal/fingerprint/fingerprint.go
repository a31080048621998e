// Package fingerprint folds the watched marker state of a project and the
// build parameters into one opaque value.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dusk-indust/polydeps/internal/detect"
)

// Value is a hex sha256 digest.
type Value string

func (v Value) String() string { return string(v) }

// Short returns the first 12 characters, for logs.
func (v Value) Short() string {
	if len(v) > 12 {
		return string(v[:12])
	}
	return string(v)
}

// Engine computes fingerprints. The zero value is ready to use.
type Engine struct{}

// New creates an Engine.
func New() *Engine {
	return &Engine{}
}

// Compute hashes, in sorted path order, every watched path of desc plus the
// extra root-relative paths. Each path contributes its name, a presence flag
// and the sha256 of its content, so a marker disappearing changes the value
// just like an edit does. The variant name and the canonical parameter tuple
// close the digest.
//
// All fields are length-prefixed to prevent ambiguity.
func (e *Engine) Compute(desc detect.ProjectDescriptor, variant detect.ToolVariant, params detect.Params, extra []string) (Value, error) {
	digests, err := e.Digests(desc.Root, mergePaths(desc.Watched, extra))
	if err != nil {
		return "", err
	}
	return e.Fold(desc.Ecosystem, variant, params, digests), nil
}

// Fold combines digests taken by Digests with the variant name and the
// canonical parameter tuple. Compute is Digests followed by Fold.
func (e *Engine) Fold(eco detect.Ecosystem, variant detect.ToolVariant, params detect.Params, digests map[string]string) Value {
	paths := make([]string, 0, len(digests))
	for p := range digests {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	writeField(h, []byte(eco))
	writeCount(h, len(paths))
	for _, p := range paths {
		writeField(h, []byte(p))
		sum := digests[p]
		if sum == "" {
			writeField(h, []byte{0})
			continue
		}
		writeField(h, []byte{1})
		writeField(h, []byte(sum))
	}
	writeField(h, []byte(variant.Name()))
	writeField(h, params.Canonical())

	return Value(hex.EncodeToString(h.Sum(nil)))
}

func mergePaths(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			p = filepath.ToSlash(p)
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// hashFile streams the file through sha256. A missing path or a directory
// reports present=false.
func hashFile(path string) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if info.IsDir() {
		return nil, false, nil
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, false, err
	}
	return h.Sum(nil), true, nil
}

func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	writeField(h, buf[:])
}

// Digests returns the content sha256 of every root-relative path, or "" for
// a path that is absent. Comparing two Digests taken around a tool run
// shows which inputs the run touched.
func (e *Engine) Digests(root string, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range mergePaths(paths, nil) {
		sum, present, err := hashFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			return nil, fmt.Errorf("fingerprinting %s: %w", p, err)
		}
		if present {
			out[p] = hex.EncodeToString(sum)
		} else {
			out[p] = ""
		}
	}
	return out, nil
}

// Changed lists, sorted, the paths whose digest differs between before and
// after. A path missing from one side counts as absent.
func Changed(before, after map[string]string) []string {
	var out []string
	for p, sum := range before {
		if after[p] != sum {
			out = append(out, p)
		}
	}
	for p, sum := range after {
		if _, ok := before[p]; !ok && sum != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
