package credential

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period the watcher waits after a file
// event before rebuilding the pool. Login flows write temp-then-rename, so a
// single save produces several events in quick succession.
const DefaultDebounceInterval = 100 * time.Millisecond

// DirWatcher watches the credential directory and rebuilds the in-memory
// pool whenever credential files change. Events are debounced to prevent
// reload storms when several files change at once.
type DirWatcher struct {
	watcher  *fsnotify.Watcher
	manager  *Manager
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDirWatcher creates a watcher that calls manager.Reload on changes to
// JSON files under the manager's store directory.
func NewDirWatcher(manager *Manager) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &DirWatcher{
		watcher:  watcher,
		manager:  manager,
		logger:   slog.Default().With("component", "credential-watcher"),
		debounce: DefaultDebounceInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing file events until the context is cancelled or
// Stop is called.
func (w *DirWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	dir := w.manager.store.Dir()
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch credential directory %q: %w", dir, err)
	}

	w.logger.Info("credential watcher started",
		"dir", dir,
		"debounce_ms", w.debounce.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("credential watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("credential watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("credential file event",
				"path", event.Name,
				"op", event.Op.String())

			w.schedule(func() {
				if err := w.manager.Reload(); err != nil {
					w.logger.Error("credential pool reload failed", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("credential watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *DirWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// schedule resets the debounce timer; fn runs after a quiet period.
func (w *DirWatcher) schedule(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
		default:
			fn()
		}
	})
}

// shouldProcessEvent filters out events that cannot change the pool: chmods,
// temp files from atomic saves, and non-JSON files.
func shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(base), ".json")
}
