// Package stamp persists the fingerprint of the last successful cached
// action under a project-local state directory:
//
//	<state dir>/<namespace>/<action>-<params key>.json
//
// Writes are atomic (temp file + rename). There is no locking; two
// concurrent writers of the same key race and the last rename wins.
package stamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/fingerprint"
)

// DirName is the state directory created under the project root or the
// configured output directory.
const DirName = ".polydeps"

// NamespaceToolchain holds toolchain presence stamps. Ecosystem stamps use
// the ecosystem name as namespace.
const NamespaceToolchain = "toolchain"

// Record is one persisted stamp.
type Record struct {
	Ecosystem   string            `json:"ecosystem"`
	Action      string            `json:"action"`
	Key         string            `json:"key"`
	Fingerprint fingerprint.Value `json:"fingerprint"`
	Variant     string            `json:"variant,omitempty"`
	Params      detect.Params     `json:"params"`
	RecordedAt  time.Time         `json:"recorded_at"`
}

// ActionKey encodes the action and parameter tuple so distinct tuples never
// share a stamp.
func ActionKey(action string, params detect.Params) string {
	return action + "-" + params.Key()
}

// StateDir returns where stamps live for a project: <outputDir>/.polydeps
// when an artifact directory is configured, <root>/.polydeps otherwise. A
// relative outputDir is resolved against root.
func StateDir(root, outputDir string) string {
	if outputDir == "" {
		return filepath.Join(root, DirName)
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(root, outputDir)
	}
	return filepath.Join(outputDir, DirName)
}

// Store reads and writes the stamps of one namespace.
type Store struct {
	dir string
}

// NewStore creates a store for namespace under stateDir. The directory is
// created lazily on first write.
func NewStore(stateDir, namespace string) (*Store, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, errors.New("state dir is required")
	}
	if strings.TrimSpace(namespace) == "" || strings.ContainsAny(namespace, `/\`) {
		return nil, fmt.Errorf("invalid stamp namespace %q", namespace)
	}
	return &Store{dir: filepath.Join(stateDir, namespace)}, nil
}

// Dir returns the namespace directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid stamp key %q", key)
	}
	return nil
}

// Read returns the record for key. ok is false when no stamp exists.
func (s *Store) Read(key string) (Record, bool, error) {
	if err := validKey(key); err != nil {
		return Record{}, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("reading stamp %s: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt stamp is treated as absent; the action reruns and
		// overwrites it.
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Write persists rec under key.
func (s *Store) Write(key string, rec Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	if rec.Key == "" {
		rec.Key = key
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating stamp dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stamp: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("writing stamp %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing stamp %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing stamp %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing stamp %s: %w", key, err)
	}
	return nil
}

// IsFresh reports whether the stamp under key records exactly current.
func (s *Store) IsFresh(key string, current fingerprint.Value) (bool, error) {
	rec, ok, err := s.Read(key)
	if err != nil || !ok {
		return false, err
	}
	return rec.Fingerprint == current, nil
}

// Clear removes the stamp under key. A missing stamp is not an error.
func (s *Store) Clear(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing stamp %s: %w", key, err)
	}
	return nil
}

// ClearAll removes every stamp in the namespace.
func (s *Store) ClearAll() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("clearing stamps in %s: %w", s.dir, err)
	}
	return nil
}

// List returns every readable record in the namespace, sorted by key.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing stamps: %w", err)
	}
	var out []Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, ok, err := s.Read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
