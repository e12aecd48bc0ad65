// Package statesync keeps a cheap, always-available session listing in
// sync with what's on disk, for consumers (a TUI sidebar, a session
// picker) that want a fast "what sessions exist and what are they about"
// view without running the full agentic loop to get it.
package statesync

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codeturn-ai/opencode/internal/logging"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
)

// DefaultScanInterval is how often the worker re-scans the session
// directory when no filesystem event has triggered an out-of-band scan.
const DefaultScanInterval = 30 * time.Second

// debounceWindow bounds how often a filesystem-triggered scan can fire, so
// a burst of writes during an active turn collapses into a single rescan.
const debounceWindow = time.Second

// Listing is the {id, title, updated} row the worker publishes.
type Listing = sessionstore.Listing

// Worker periodically scans the session directory tree and publishes an
// up-to-date listing on Updates. A scan runs on a fixed interval
// regardless of filesystem activity; fsnotify supplements it by triggering
// an out-of-band scan shortly after a write anywhere under the session
// directory, so a newly created or renamed session shows up well before
// the next poll tick would otherwise reveal it.
type Worker struct {
	store    *sessionstore.Store
	interval time.Duration

	updates chan []Listing
}

// New creates a Worker reading through store. A zero interval uses
// DefaultScanInterval.
func New(store *sessionstore.Store, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &Worker{
		store:    store,
		interval: interval,
		updates:  make(chan []Listing, 1),
	}
}

// Updates returns the channel the worker publishes fresh listings on. Each
// publish replaces whatever was previously queued, so a consumer that
// falls behind sees only the latest scan rather than a backlog of stale
// ones.
func (w *Worker) Updates() <-chan []Listing {
	return w.updates
}

// Run scans on the worker's interval until ctx is cancelled, additionally
// watching sessionDir for writes via fsnotify and triggering a debounced
// rescan on any. If the watcher can't be established (no inotify support,
// for instance), Run falls back to polling on the timer alone rather than
// failing outright.
func (w *Worker) Run(ctx context.Context, sessionDir string) {
	w.scanAndPublish(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn().Err(err).Msg("statesync: filesystem watch unavailable, polling only")
		w.pollLoop(ctx)
		return
	}
	defer watcher.Close()

	if err := addRecursive(watcher, sessionDir); err != nil {
		logging.Warn().Err(err).Str("dir", sessionDir).Msg("statesync: failed to watch session directory")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var debounceMu sync.Mutex
	var debounceTimer *time.Timer
	triggerScan := func() {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(debounceWindow, func() {
			w.scanAndPublish(ctx)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.scanAndPublish(ctx)

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)
				}
			}
			triggerScan()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("statesync: watch error")
		}
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scanAndPublish(ctx)
		}
	}
}

// scanAndPublish lists the store's sessions and pushes the result onto
// Updates. Individual unreadable entries are already skipped inside List.
func (w *Worker) scanAndPublish(ctx context.Context) {
	all, err := w.store.List()
	if err != nil {
		logging.Warn().Err(err).Msg("statesync: scan failed")
		return
	}

	// Drain any stale, unconsumed listing before publishing the fresh one:
	// Updates is a last-value channel, not a queue.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- all:
	case <-ctx.Done():
	}
}

// addRecursive watches dir and every subdirectory beneath it. fsnotify
// doesn't watch subtrees on its own, and the session store nests a
// directory per session under the root.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // an unreadable subdirectory shouldn't abort the whole walk
		}
		if d.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	})
}
