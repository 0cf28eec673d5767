package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
)

// Targets lists what a project watcher observes.
type Targets struct {
	// Trees are watched recursively; directories created inside them are added.
	Trees []string
	// Dirs are watched without descending (project root, API description folders).
	Dirs []string
}

// TargetsFor derives watch targets from a project configuration: every
// section content directory, the project root and the folders holding API
// descriptions.
func TargetsFor(cfg *config.Config) (Targets, error) {
	sections, err := config.ResolveSections(cfg)
	if err != nil {
		return Targets{}, err
	}
	var t Targets
	for _, s := range sections {
		if !slices.Contains(t.Trees, s.ContentDir) {
			t.Trees = append(t.Trees, s.ContentDir)
		}
	}
	t.Dirs = append(t.Dirs, cfg.Root)
	for _, api := range cfg.APIs {
		dir := filepath.Dir(cfg.Path(api.Spec))
		if !slices.Contains(t.Dirs, dir) {
			t.Dirs = append(t.Dirs, dir)
		}
	}
	return t, nil
}

// FSWatcher turns file-system events into rebuild requests.
type FSWatcher struct {
	watcher *fsnotify.Watcher
	req     Requester

	mu    sync.Mutex
	trees []string
	dirs  []string
}

// NewFSWatcher starts watching targets. Missing directories are skipped with a warning.
func NewFSWatcher(t Targets, req Requester) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	fw := &FSWatcher{watcher: w, req: req}
	fw.Retarget(t)
	return fw, nil
}

// Retarget switches the watcher to t. New trees and dirs are added; those no
// longer targeted are released.
func (fw *FSWatcher) Retarget(t Targets) {
	fw.mu.Lock()
	oldTrees, oldDirs := fw.trees, fw.dirs
	fw.trees = slices.Clone(t.Trees)
	fw.dirs = slices.Clone(t.Dirs)
	fw.mu.Unlock()

	for _, dir := range t.Trees {
		if !slices.Contains(oldTrees, dir) {
			fw.addTree(dir)
		}
	}
	for _, dir := range t.Dirs {
		if slices.Contains(oldDirs, dir) {
			continue
		}
		if err := fw.watcher.Add(dir); err != nil {
			slog.Warn("Watch add failed", logfields.Path(dir), logfields.Error(err))
		}
	}
	if len(oldTrees) == 0 && len(oldDirs) == 0 {
		return
	}
	for _, p := range fw.watcher.WatchList() {
		if fw.inTree(p) || fw.isDir(p) {
			continue
		}
		if err := fw.watcher.Remove(p); err != nil {
			slog.Debug("Watch remove failed", logfields.Path(p), logfields.Error(err))
		}
	}
}

// Follow retargets the watcher whenever l publishes a new snapshot, so
// sections added by a configuration edit are watched without a restart.
func (fw *FSWatcher) Follow(l *Loop) func() {
	return l.Subscribe(func(u Update) {
		if u.Snapshot == nil || u.Snapshot.Config == nil {
			return
		}
		t, err := TargetsFor(u.Snapshot.Config)
		if err != nil {
			slog.Warn("Keeping watch targets", logfields.Error(err))
			return
		}
		fw.Retarget(t)
	})
}

// Watched returns the directories currently registered with the OS watcher.
func (fw *FSWatcher) Watched() []string {
	return fw.watcher.WatchList()
}

// Run forwards events until ctx is done or the watcher is closed.
func (fw *FSWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(ev)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (fw *FSWatcher) Close() error {
	return fw.watcher.Close()
}

func (fw *FSWatcher) handle(ev fsnotify.Event) {
	if ignored(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	if ev.Has(fsnotify.Create) && fw.inTree(ev.Name) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			fw.addTree(ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	fw.req.Request(ev.Op.String() + " " + ev.Name)
}

func (fw *FSWatcher) inTree(p string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for _, root := range fw.trees {
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (fw *FSWatcher) isDir(p string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return slices.Contains(fw.dirs, p)
}

func (fw *FSWatcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == root {
				slog.Warn("Watch root unavailable", logfields.Path(root), logfields.Error(err))
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && ignored(p) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(p); err != nil {
			slog.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

// ignored matches hidden entries and editor temp/swap files.
func ignored(p string) bool {
	base := filepath.Base(p)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	}
	return false
}
