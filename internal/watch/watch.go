// Package watch re-runs generation when watched headers change.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/headerdoc/internal/lang"
)

// DefaultDebounce is the quiet period before a batch of changes fires.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports changes to headers under a set of inputs.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]bool // inputs given as files, watched through their directory
	debounce time.Duration
}

// New watches paths: directories recursively, files individually.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{fsw: fsw, files: make(map[string]bool), debounce: debounce}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
		if info.IsDir() {
			err = w.addRecursive(p)
		} else {
			w.files[filepath.Clean(p)] = true
			err = fsw.Add(filepath.Dir(p))
		}
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)
	if w.files[name] {
		return true
	}
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	return lang.ForExtension(filepath.Ext(name)) != ""
}

// Run blocks until ctx is done, calling onChange with the sorted set of
// changed headers once events have been quiet for the debounce period.
// onChange runs on the Run goroutine; events arriving meanwhile are
// batched into the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(files []string)) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			// Handle new directories - add them to watcher
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			if event.Op == fsnotify.Chmod || !w.relevant(event.Name) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			slices.Sort(files)
			clear(pending)
			onChange(files)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}
