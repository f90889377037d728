package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// isWatchedFile reports whether a change to path should trigger a re-run
func isWatchedFile(path string) bool {
	base := filepath.Base(path)
	if base == "Package.swift" || base == "Package.resolved" {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".swift", ".xctestplan", ".xcscheme", ".pbxproj", ".m", ".h":
		return true
	}
	return false
}

// skipWatchDir reports whether a directory is build output or metadata
func skipWatchDir(name string) bool {
	if name != "." && strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "DerivedData", "Pods", "Carthage", "build":
		return true
	}
	return strings.HasSuffix(name, ".xcresult")
}

// watchRoots returns the directories holding the sources of the request
func (s *session) watchRoots() []string {
	seen := make(map[string]bool)
	var roots []string
	add := func(dir string) {
		if dir == "" {
			return
		}
		abs, err := filepath.Abs(dir)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		roots = append(roots, abs)
	}
	add(s.req.ProjectPath)
	for _, pkg := range s.req.Packages {
		if filepath.IsAbs(pkg.Path) || s.req.ProjectPath == "" {
			add(pkg.Path)
		} else {
			add(filepath.Join(s.req.ProjectPath, pkg.Path))
		}
	}
	return roots
}

// addWatchTree registers root and every source directory below it
func addWatchTree(watcher *fsnotify.Watcher, root, scratch string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (skipWatchDir(d.Name()) || (scratch != "" && path == scratch)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// watch re-runs the session whenever a source file changes, until ctx ends.
// Changes are debounced, and runs are spaced at least WatchMinInterval apart.
func watch(ctx context.Context, out io.Writer, s *session) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	scratch := ""
	if s.cfg.ScratchRoot != "" {
		scratch, _ = filepath.Abs(s.cfg.ScratchRoot)
	}
	for _, root := range s.watchRoots() {
		if err := addWatchTree(watcher, root, scratch); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to watch %s: %v\n", root, err)
		}
	}

	limiter := rate.NewLimiter(rate.Every(WatchMinInterval), 1)
	// The initial run already used the first token
	limiter.Allow()

	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var (
		debounce <-chan time.Time
		changed  string
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipWatchDir(info.Name()) {
					_ = addWatchTree(watcher, event.Name, scratch)
				}
			}
			if !isWatchedFile(event.Name) || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
				continue
			}
			// Debounce: restart the delay on each event
			changed = event.Name
			debounce = time.After(WatchDebounceDelay)

		case <-debounce:
			debounce = nil
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			fmt.Fprintf(out, "\nFile changed: %s\nRe-running tests...\n\n", changed)
			if _, err := s.runOnce(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "warning: watcher error: %v\n", err)
		}
	}
}
