package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOption configures a SeedWatcher.
type WatcherOption func(*SeedWatcher)

// WithWatchDebounce sets how long the file must be quiet before a reload.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *SeedWatcher) { w.debounce = d }
}

func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *SeedWatcher) { w.logger = l }
}

// SeedWatcher reapplies a seed file whenever its content changes and
// reports the pipelines that were rewritten. It watches the parent
// directory so editors that save by renaming are noticed.
type SeedWatcher struct {
	file     *SeedFile
	seeder   *Seeder
	debounce time.Duration
	logger   *slog.Logger
	onChange func(ctx context.Context, changed []string)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu        sync.Mutex
	lastHash  string
	pendingAt time.Time
}

func NewSeedWatcher(file *SeedFile, seeder *Seeder, onChange func(ctx context.Context, changed []string), opts ...WatcherOption) *SeedWatcher {
	w := &SeedWatcher{
		file:     file,
		seeder:   seeder,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start applies the seed once and then begins watching it.
func (w *SeedWatcher) Start(ctx context.Context) error {
	if err := w.reload(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("seed watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	dir := filepath.Dir(w.file.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("seed watcher: watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends the watch. It is safe to call more than once.
func (w *SeedWatcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *SeedWatcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Symlink swaps touch sibling names, so any event in the
			// directory schedules a hash check.
			w.mu.Lock()
			w.pendingAt = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("seed watcher error", "err", err)

		case <-ticker.C:
			w.mu.Lock()
			ready := !w.pendingAt.IsZero() && time.Since(w.pendingAt) >= w.debounce
			if ready {
				w.pendingAt = time.Time{}
			}
			w.mu.Unlock()
			if ready {
				if err := w.reload(context.Background()); err != nil {
					w.logger.Error("seed watcher: reload failed", "path", w.file.Path(), "err", err)
				}
			}
		}
	}
}

func (w *SeedWatcher) reload(ctx context.Context) error {
	seed, hash, err := w.file.Load()
	if err != nil {
		return err
	}
	w.mu.Lock()
	same := hash == w.lastHash
	w.mu.Unlock()
	if same {
		w.logger.Debug("seed watcher: content unchanged, skipping", "path", w.file.Path())
		return nil
	}

	changed, err := w.seeder.Apply(ctx, seed)
	if len(changed) > 0 && w.onChange != nil {
		w.onChange(ctx, changed)
	}
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()
	w.logger.Info("seed reloaded", "path", w.file.Path(), "hash", hash[:8], "changed", changed)
	return nil
}
