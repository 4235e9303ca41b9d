// Package watcher delivers file change notifications for a project tree.
//
// Every notification carries a future that settles with the file's state once
// the change has had time to land on disk. A state with Exists == false means
// the file was deleted.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/withgalaxy/devbridge/pkg/async"
)

var DefaultIgnore = []string{
	"**/node_modules",
	"**/node_modules/**",
	"**/.git",
	"**/.git/**",
}

type FileState struct {
	Path    string
	Exists  bool
	Size    int64
	ModTime time.Time
}

type Event struct {
	Path   string
	Change *async.Future[FileState]
}

type Listener func(Event)

type Options struct {
	// Ignore holds doublestar patterns matched against slash-separated paths
	// relative to the root.
	Ignore []string
	// Debounce delays settling of the change future. 0 settles immediately.
	Debounce time.Duration
	Logger   *zap.Logger
}

type Watcher struct {
	root string
	opts Options
	fsw  *fsnotify.Watcher

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// New watches root and every directory below it that is not ignored.
func New(root string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern: %s", pattern)
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:      abs,
		opts:      opts,
		fsw:       fsw,
		listeners: make(map[uint64]Listener),
	}
	if err := w.addRecursive(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.Ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Ignored reports whether path matches one of the ignore patterns.
func (w *Watcher) Ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.opts.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Subscribe registers l for every change. The returned function detaches it.
func (w *Watcher) Subscribe(l Listener) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) Listeners() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.listeners)
}

// Publish delivers a change for path to every listener.
func (w *Watcher) Publish(path string, change *async.Future[FileState]) {
	w.mu.RLock()
	listeners := make([]Listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	w.mu.RUnlock()

	ev := Event{Path: path, Change: change}
	for _, l := range listeners {
		l(ev)
	}
}

// Notify publishes a change for path whose future settles after the debounce
// window with the file's state at that time.
func (w *Watcher) Notify(path string) {
	change, settle := async.New[FileState]()
	if w.opts.Debounce <= 0 {
		_ = settle(Stat(path), nil)
	} else {
		time.AfterFunc(w.opts.Debounce, func() {
			_ = settle(Stat(path), nil)
		})
	}
	w.Publish(path, change)
}

// Run forwards filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.opts.Logger
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn("watcher event queue overflowed", zap.Error(err))
				continue
			}
			log.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if w.Ignored(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.opts.Logger.Warn("watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	w.opts.Logger.Debug("file changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	w.Notify(event.Name)
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Stat reports the current state of path. Directories count as absent.
func Stat(path string) FileState {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return FileState{Path: path}
	}
	return FileState{
		Path:    path,
		Exists:  true,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
