// Package watcher provides file system watching with debouncing for the
// session desktop-entry directories.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/greeterm/internal/log"
	"github.com/zjrosen/greeterm/internal/pubsub"
)

// EventKind identifies what the watcher observed.
type EventKind int

const (
	// EntriesChanged means a desktop entry was written, created, renamed or removed.
	EntriesChanged EventKind = iota
	// WatchError means the underlying fsnotify watcher reported an error.
	WatchError
)

// Event is the payload published on the watcher's broker.
type Event struct {
	Kind EventKind
	Err  error
}

// Watcher monitors the session directories and publishes change events.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dirs      []string
	debounce  time.Duration
	events    *pubsub.Broker[Event]
	done      chan struct{}
	stopOnce  sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	Dirs        []string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dirs []string) Config {
	return Config{
		Dirs:        dirs,
		DebounceDur: 1 * time.Second,
	}
}

// New creates a new session-directory watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dirs:      cfg.Dirs,
		debounce:  cfg.DebounceDur,
		events:    pubsub.NewBroker[Event](),
		done:      make(chan struct{}),
	}, nil
}

// Broker exposes the event broker for subscription.
func (w *Watcher) Broker() *pubsub.Broker[Event] {
	return w.events
}

// Start begins watching. Directories that do not exist are skipped; if none
// can be watched the watcher still runs and simply never fires.
func (w *Watcher) Start() error {
	watched := 0
	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			log.Debug(log.CatWatcher, "not watching directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	log.Info(log.CatWatcher, "watching session directories", "count", watched)

	go w.loop()

	return nil
}

// Stop terminates the watcher and releases resources. Safe to call more
// than once; UI teardown and a quit key can both reach it.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.events.Close()
		err = w.fsWatcher.Close()
	})
	return err
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C
		}

		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else if !pending {
				timer.Reset(w.debounce)
			}
			pending = true

		case <-timerC:
			if pending {
				pending = false
				w.events.Publish(pubsub.RefreshEvent, Event{Kind: EntriesChanged})
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "watch error", "error", err)
			w.events.Publish(pubsub.RefreshEvent, Event{Kind: WatchError, Err: err})

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent keeps writes, creations, renames and removals of desktop
// entries.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if filepath.Ext(event.Name) != ".desktop" {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
