package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kesokaj/brew-lag/internal/store"
)

// Catalog is the slice of the tap repository the watcher needs.
type Catalog interface {
	Dir() string
	Head() (string, error)
}

// Watcher follows the core tap's git directory and marks the compiled
// plan stale once the catalog head moves away from the head the plan
// was compiled under.
type Watcher struct {
	store    *store.Store
	catalog  Catalog
	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	wg       sync.WaitGroup
	recheck  *time.Ticker
	debounce time.Duration
}

// New creates a watcher for the given store and catalog.
func New(st *store.Store, catalog Catalog) (*Watcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	return &Watcher{
		store:    st,
		catalog:  catalog,
		stopCh:   make(chan struct{}),
		debounce: 2 * time.Second,
	}, nil
}

// Start checks the head once, then begins following the catalog's .git
// directory. A slow ticker rechecks even without fs events in case a
// fetch lands in a way the notifier misses.
func (w *Watcher) Start() error {
	w.checkHead()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}

	gitDir := filepath.Join(w.catalog.Dir(), ".git")
	if err := fsw.Add(gitDir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", gitDir, err)
	}

	w.fsw = fsw
	w.recheck = time.NewTicker(5 * time.Minute)

	w.wg.Add(1)
	go w.run()

	return nil
}

// run consumes fs events until stopped. A fetch rewrites FETCH_HEAD,
// packed-refs and friends in one burst; the debounce timer folds the
// burst into a single head check.
func (w *Watcher) run() {
	defer w.wg.Done()

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !headRelevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				pending = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-pending:
			timer = nil
			pending = nil
			w.checkHead()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("fs event error", "error", err)
		case <-w.recheck.C:
			w.checkHead()
		case <-w.stopCh:
			return
		}
	}
}

// headRelevant filters the .git churn down to the files a fetch or
// checkout moves the head through.
func headRelevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Base(ev.Name) {
	case "HEAD", "FETCH_HEAD", "ORIG_HEAD", "packed-refs":
		return true
	}
	return false
}

// checkHead compares the catalog head against the plan's and marks the
// plan stale on mismatch. Errors are logged, not fatal; the next tick
// tries again.
func (w *Watcher) checkHead() {
	meta, err := w.store.GetPlanMeta()
	if err != nil {
		slog.Warn("failed to load plan meta", "error", err)
		return
	}
	if meta == nil || meta.Stale {
		return
	}

	head, err := w.catalog.Head()
	if err != nil {
		slog.Warn("failed to read catalog head", "error", err)
		return
	}
	if head == meta.CatalogHead {
		return
	}

	if err := w.store.MarkPlanStale(); err != nil {
		slog.Warn("failed to mark plan stale", "error", err)
		return
	}
	slog.Info("catalog head moved, plan marked stale",
		"planned", meta.CatalogHead,
		"head", head)
}

// Stop halts the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() error {
	close(w.stopCh)

	if w.recheck != nil {
		w.recheck.Stop()
	}
	if w.fsw != nil {
		w.fsw.Close()
	}

	w.wg.Wait()
	return nil
}
