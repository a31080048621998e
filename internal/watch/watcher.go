// Package watch re-runs install whenever a watched marker of a project
// changes.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/logger"
	"github.com/dusk-indust/polydeps/internal/orchestrator"
	"github.com/fsnotify/fsnotify"
)

var log = logger.ForComponent("watch")

// Target is one ecosystem kept installed by the watcher.
// *orchestrator.Orchestrator satisfies it.
type Target interface {
	Ecosystem() detect.Ecosystem
	Descriptor() (detect.ProjectDescriptor, error)
	Do(ctx context.Context, action dispatch.Action, args []string) (*orchestrator.Outcome, error)
}

type Watcher struct {
	root        string
	config      Config
	targets     []Target
	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	pending     *Coalescer

	// syncMu serialises flushes; a slow install must finish before the
	// next batch is looked at.
	syncMu sync.Mutex
	ctx    context.Context

	// OnSync, when set, is called after every batch with the ecosystems
	// that were re-installed.
	OnSync func(installed []detect.Ecosystem)
}

func New(root string, targets []Target, config Config) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolving root: %w", err)
	}
	for _, p := range config.IgnorePatterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", p)
		}
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:      abs,
		config:    config,
		targets:   targets,
		fsWatcher: fsWatcher,
		ctx:       context.Background(),
	}
	w.pending = NewCoalescer(config.DebounceWindow, config.MaxBatchSize, w.onFlush)
	return w, nil
}

// Run installs every target once, then watches until ctx is done. It
// returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx
	if err := w.addTree(w.root); err != nil {
		_ = w.close()
		return fmt.Errorf("watch: %w", err)
	}
	log.Info("watching", "root", w.root, "ecosystems", len(w.targets))

	w.syncMu.Lock()
	w.install(ctx, w.targets)
	w.syncMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			w.pending.Close()
			return w.close()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) close() error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	if err := w.addToWatcher(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if w.ignored(w.rel(full)) {
			continue
		}
		if err := w.addTree(full); err != nil {
			log.Debug("failed to watch directory", "path", full, "error", err)
		}
	}
	return nil
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel := w.rel(event.Name)
	if rel == "" || w.ignored(rel) {
		return
	}
	log.Debug("file event", "path", rel, "op", event.Op.String())

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				log.Debug("failed to watch directory", "path", rel, "error", err)
			}
		}
	}

	if op, ok := opOf(event); ok {
		w.pending.Add(Change{Path: rel, Op: op, At: time.Now()})
	}
}

// opOf maps an fsnotify event to the change kind it represents. Chmod-only
// events are dropped.
func opOf(event fsnotify.Event) (Op, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return OpCreate, true
	case event.Has(fsnotify.Write):
		return OpWrite, true
	case event.Has(fsnotify.Remove):
		return OpRemove, true
	case event.Has(fsnotify.Rename):
		return OpRename, true
	}
	return 0, false
}

// rel returns the root-relative slash path of name, or "" for the root
// itself and paths outside it.
func (w *Watcher) rel(name string) string {
	r, err := filepath.Rel(w.root, name)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(r)
}

func (w *Watcher) ignored(rel string) bool {
	for _, pattern := range w.config.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern+"/**", rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) onFlush(changes []Change) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	ctx := w.ctx
	if ctx.Err() != nil {
		return
	}
	log.Debug("batch ready", "paths", len(changes))

	changed := make(map[string]bool, len(changes))
	for _, c := range changes {
		changed[c.Path] = true
	}

	var affected []Target
	for _, t := range w.targets {
		desc, err := t.Descriptor()
		if err != nil {
			log.Warn("scanning markers failed", "ecosystem", string(t.Ecosystem()), "error", err)
			continue
		}
		if touches(desc.Watched, changed) {
			affected = append(affected, t)
		}
	}
	if len(affected) == 0 {
		return
	}
	w.install(ctx, affected)
}

// install runs install on each target, logging failures. Watching
// continues whatever the outcome.
func (w *Watcher) install(ctx context.Context, targets []Target) {
	var installed []detect.Ecosystem
	for _, t := range targets {
		eco := string(t.Ecosystem())
		out, err := t.Do(ctx, dispatch.ActionInstall, nil)
		if err != nil {
			log.Error("install failed", "ecosystem", eco, "error", err)
			continue
		}
		installed = append(installed, t.Ecosystem())
		if out != nil && out.Skipped() {
			log.Info("install up to date", "ecosystem", eco)
		} else {
			log.Info("installed", "ecosystem", eco)
		}
	}
	if w.OnSync != nil {
		w.OnSync(installed)
	}
}

func touches(watched []string, changed map[string]bool) bool {
	for _, p := range watched {
		if changed[p] {
			return true
		}
	}
	return false
}
