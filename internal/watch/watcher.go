// Package watch re-runs the check pipeline when watched sources change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cppstyle/internal/logging"
)

// Watcher monitors input roots and invokes a callback after changes settle.
// Rapid saves are debounced so editors writing temp+rename sequences trigger
// one run, not several.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	roots       []string
	extensions  map[string]bool
	debounceDur time.Duration
	onChange    func()
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// New creates a watcher over the given roots. onChange is called after each
// debounced batch of relevant events.
func New(roots []string, extensions []string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = true
	}
	return &Watcher{
		watcher:     fsw,
		roots:       roots,
		extensions:  extSet,
		debounceDur: 500 * time.Millisecond,
		onChange:    onChange,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			logging.Get(logging.CategoryWatch).Warn("Start: cannot watch %s: %v", root, err)
		}
	}

	go w.loop(ctx)
	logging.Watch("Start: watching %d roots", len(w.roots))
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

// addRecursive registers a root and its subdirectories.
func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// loop consumes events, debounces and fires the callback.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			logging.WatchDebug("loop: %s %s", event.Op, event.Name)
			// New directories must be added to keep recursion live.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounceDur)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounceDur)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Warn("loop: watch error: %v", err)
		}
	}
}

// relevant filters events down to source-file writes and directory creation.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(event.Name))]
}
