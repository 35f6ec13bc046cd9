// file: internal/watcher/watcher.go
// version: 1.0.0
// guid: 9c4b2e7d-6f1a-4d8c-b3e5-0a7f4d2c9b6e

// Package watcher monitors the processed root for new audiobook files and
// triggers a re-import once events settle.
package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the default debounce period.
const DefaultDebounce = 5 * time.Second

// Callback is invoked after the debounce period with the root directory.
type Callback func(rootDir string)

// Watcher monitors the processed root for audio file changes and invokes a
// callback after a debounce period.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	rootDir   string
	debounce  time.Duration
	callback  Callback
	supported func(name string) bool
	stop      chan struct{}
	stopped   chan struct{}
	mu        sync.Mutex
	timer     *time.Timer
	running   bool
}

// New creates a Watcher. supported decides which file names count as audio;
// the callback runs with rootDir after events settle for the debounce
// duration. Pass 0 for debounce to use DefaultDebounce.
func New(callback Callback, supported func(name string) bool, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce:  debounce,
		callback:  callback,
		supported: supported,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start begins watching rootDir recursively. It is safe to call only once.
func (w *Watcher) Start(rootDir string) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw
	w.rootDir = rootDir

	if err := w.addRecursive(rootDir); err != nil {
		fsw.Close()
		return err
	}

	go w.eventLoop()
	return nil
}

// Stop gracefully shuts down the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	<-w.stopped

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			if watchErr := w.fsWatcher.Add(path); watchErr != nil {
				log.Printf("[WARN] watcher: cannot watch %s: %v", path, watchErr)
			}
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[ERROR] watcher: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories get watched before their contents settle.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			w.scheduleScan()
			return
		}
	}

	relevant := event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
	if !relevant {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	if w.supported != nil && !w.supported(event.Name) {
		return
	}

	w.scheduleScan()
}

func (w *Watcher) scheduleScan() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()

		log.Printf("[INFO] watcher: triggering callback for %s", w.rootDir)
		if w.callback != nil {
			w.callback(w.rootDir)
		}
	})
}
