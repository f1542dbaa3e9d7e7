// Package watch notifies the front end when another process mutates the
// persisted client state, so a running session can reload instead of
// clobbering newer data on its next write.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 100 * time.Millisecond

// Listener receives the name of the store file that changed, after
// debouncing.
type Listener interface {
	OnStoreChange(name string)
}

// StoreWatcher watches the data directory via fsnotify and reports changes
// to a listener. Events are debounced per file because an atomic
// write produces a create/rename pair.
type StoreWatcher struct {
	dir      string
	listener Listener
	watcher  *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc

	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

func NewStoreWatcher(dir string, listener Listener) *StoreWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &StoreWatcher{
		dir:      dir,
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[string]*time.Timer),
	}
}

func (w *StoreWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	go w.eventLoop()
	slog.Info("store watcher started", "dir", w.dir)
	return nil
}

func (w *StoreWatcher) Stop() {
	w.cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.timerMu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.timerMu.Unlock()

	slog.Info("store watcher stopped")
}

func (w *StoreWatcher) eventLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", "error", err)
		}
	}
}

func (w *StoreWatcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)

	// Atomic writes go through temp files; only the final rename matters.
	if strings.Contains(name, ".tmp") || !strings.HasSuffix(name, ".json") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.timerMu.Lock()
	if timer, exists := w.timers[name]; exists {
		timer.Stop()
	}
	w.timers[name] = time.AfterFunc(debounceInterval, func() {
		w.notify(name)
		w.timerMu.Lock()
		delete(w.timers, name)
		w.timerMu.Unlock()
	})
	w.timerMu.Unlock()
}

func (w *StoreWatcher) notify(name string) {
	// Timer may fire after Stop
	if w.ctx.Err() != nil {
		return
	}
	slog.Debug("store file changed", "file", name)
	w.listener.OnStoreChange(name)
}
