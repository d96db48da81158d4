// Package watch is the compiler CLI's rebuild-on-change support: it
// watches a rule-source directory tree for changes and invokes a callback,
// debouncing rapid successive saves, grounded on
// theRebelliousNerd-codenerd's MangleWatcher (a named fsnotify.Watcher
// wrapper with a goroutine-backed run loop and an explicit Start/Stop
// lifecycle rather than a free-running background goroutine with no
// teardown path).
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RuleWatcher watches root (recursively) for file changes and invokes
// onChange, debounced so a burst of saves triggers one rebuild.
type RuleWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	onChange func()
	onError  func(error)
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a RuleWatcher rooted at root. onError is invoked (not
// fatally) for fsnotify errors; it may be nil.
func New(root string, debounce time.Duration, onChange func(), onError func(error)) (*RuleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: starting watcher: %w", err)
	}
	rw := &RuleWatcher{
		watcher:  w,
		root:     root,
		onChange: onChange,
		onError:  onError,
		debounce: debounce,
	}
	if err := rw.addRecursive(root); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch: watching %s: %w", root, err)
	}
	return rw, nil
}

// Start begins watching in a background goroutine. It is non-blocking.
func (w *RuleWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *RuleWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	w.watcher.Close()
}

func (w *RuleWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

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
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			pending = true
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}

func (w *RuleWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}
