package ruleset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounceInterval is the quiet period before a reload fires.
const DefaultDebounceInterval = 200 * time.Millisecond

// Watcher reloads a Registry when rule set files change.
type Watcher struct {
	dir      string
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewWatcher creates a watcher for dir. interval <= 0 uses
// DefaultDebounceInterval.
func NewWatcher(dir string, registry *Registry, interval time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		registry: registry,
		watcher:  fsw,
		debounce: NewDebouncer(interval),
		logger:   logger,
	}, nil
}

// Watch blocks until ctx is cancelled or the watcher is closed. Failed
// reloads are logged and the previous rule sets stay active.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running || w.closed {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running or closed")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("rule set watcher started", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("rule set watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod || !IsRuleSetFile(event.Name) {
				continue
			}

			w.logger.Debug("rule set file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			w.debounce.Trigger(w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("rule set watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	if err := w.registry.Load(w.dir); err != nil {
		w.logger.Error("rule set reload failed, keeping previous rule sets",
			zap.String("dir", w.dir),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("rule sets reloaded", zap.Int("count", w.registry.Len()))
}

// Close stops the watcher and cancels any pending reload.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.debounce.Stop()
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Debouncer runs the last triggered callback once no trigger has arrived for
// the configured interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	cb := d.callback
	d.callback = nil
	stopped := d.stopped
	d.mu.Unlock()

	if cb != nil && !stopped {
		cb()
	}
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
