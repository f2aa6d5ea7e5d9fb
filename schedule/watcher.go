package schedule

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/warden/errors"
)

// ReconcileCallback is invoked after the declared file changes and has been
// debounced. It receives nothing: the callback re-runs the reconciliation
// pipeline itself from the store.
type ReconcileCallback func() error

// Watcher watches the declared job list for changes and triggers
// re-reconciliation. Optional: the declared file is normally read once at
// startup, but long-lived containers benefit from picking up config pushes
// without a restart.
type Watcher struct {
	store          *Store
	watcher        *fsnotify.Watcher
	callback       ReconcileCallback
	logger         *zap.SugaredLogger
	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
}

// NewWatcher creates a watcher over the store's declared file
func NewWatcher(store *Store, callback ReconcileCallback, log *zap.SugaredLogger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fw.Add(store.DeclaredPath()); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch declared job list %s", store.DeclaredPath())
	}

	return &Watcher{
		store:          store,
		watcher:        fw,
		callback:       callback,
		logger:         log,
		debouncePeriod: 500 * time.Millisecond, // editors and git write in bursts
	}, nil
}

// Start begins watching for declared file changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Infow("Watching declared job list", "path", w.store.DeclaredPath())
}

// Stop stops watching
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Infow("Declared job list changed",
				"file", event.Name,
				"op", event.Op.String())
			w.scheduleReconcile()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Declared job list watcher error", "error", err)
		}
	}
}

// scheduleReconcile debounces rapid file changes before invoking the callback
func (w *Watcher) scheduleReconcile() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.callback(); err != nil {
			w.logger.Errorw("Re-reconciliation after declared change failed",
				"error", err)
		}
	})
}
