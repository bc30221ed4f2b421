// Package watcher provides directory watching with fsnotify and debouncing,
// feeding file changes into the ingest pipeline.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories and invokes callbacks on file changes.
// Writes are debounced per path so editors that write in bursts trigger
// one ingest, not ten.
type Watcher struct {
	roots      []string
	extensions []string
	onIngest   func(path string)
	onRemove   func(path string)
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	logger     *zap.Logger

	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	started     bool

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over roots. Files are filtered by extension
// (empty = all). onIngest and onRemove are called with the file path.
func New(roots, extensions []string, onIngest, onRemove func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		roots:       roots,
		extensions:  extensions,
		onIngest:    onIngest,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addRoot(root); err != nil {
			w.logger.Warn("failed to watch root", zap.String("root", root), zap.Error(err))
		}
	}
	go w.run(ctx)
	return nil
}

// addRoot watches root and its subdirectories.
func (w *Watcher) addRoot(root string) error {
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

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op&fsnotify.Create != 0, ev.Op&fsnotify.Write != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// New subdirectory: watch it too.
			_ = w.watcher.Add(path)
			return
		}
		if !w.matchesExtension(path) {
			return
		}
		w.scheduleIngest(path)
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		if !w.matchesExtension(path) {
			return
		}
		w.cancelPending(path)
		if w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

func (w *Watcher) matchesExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		if w.onIngest != nil {
			w.onIngest(path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
		delete(w.debounceMap, path)
	}
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		for path, timer := range w.debounceMap {
			timer.Stop()
			delete(w.debounceMap, path)
		}
		w.mu.Unlock()
	})
}
