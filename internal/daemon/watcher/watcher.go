// Package watcher handles file system watching for the daemon.
package watcher

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/emberwatch-io/emberwatch/internal/config"
)

// Sink receives the reloaded auto-compact value after the assistant
// settings file changes. The registry satisfies it.
type Sink interface {
	SetAutoCompact(enabled bool)
}

// Watcher watches the shared assistant settings file and pushes
// auto-compact changes into the sink. The setting can be flipped by the
// assistant itself or by any other tool writing the file, so the daemon
// treats the file as the source of truth.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	sink         Sink
	settingsPath string
	done         chan struct{}
	debounce     map[string]*time.Timer
	debounceMu   sync.Mutex
}

// New creates a watcher over the assistant settings file, reporting
// changes into sink.
func New(sink Sink) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path, err := config.AssistantSettingsPath()
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		fsWatcher:    fsWatcher,
		sink:         sink,
		settingsPath: path,
		done:         make(chan struct{}),
		debounce:     make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. The settings file's parent directory is
// watched rather than the file itself so atomic writes (write tmp →
// rename over target) keep being observed after the inode changes.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.settingsPath)
	if err := w.fsWatcher.Add(dir); err != nil {
		log.Printf("Warning: failed to watch settings dir %s: %v", dir, err)
	}

	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.fsWatcher.Close()
}

// processEvents processes file system events.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
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
			log.Printf("Watcher error: %v", err)
		}
	}
}

// handleEvent processes a single file system event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Name != w.settingsPath {
		return
	}
	// Accept write, create, and rename events. Rename is critical:
	// atomic writes produce Rename events on the target file, and that
	// is how the assistant saves its settings.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.debounceEvent(event.Name, w.reload)
}

// debounceEvent debounces events for the same path.
func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}

	w.debounce[path] = time.AfterFunc(100*time.Millisecond, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}

// reload re-reads the settings file and pushes the auto-compact value
// into the sink. The sink dedupes unchanged values.
func (w *Watcher) reload() {
	enabled, err := config.LoadAutoCompact()
	if err != nil {
		log.Printf("[watcher] failed to reload assistant settings: %v", err)
		return
	}
	log.Printf("[watcher] assistant settings changed, auto-compact=%t", enabled)
	w.sink.SetAutoCompact(enabled)
}
