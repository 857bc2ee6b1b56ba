package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher polls the store's backing file and triggers an atomic reload
// when the modification time changes. Polling keeps the dependency
// surface flat and behaves identically across platforms.
type Watcher struct {
	mu sync.Mutex

	store    *Store
	interval time.Duration
	logger   *zap.Logger

	running bool
	cancel  context.CancelFunc

	lastMod time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval (default 5s, floor 1s).
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= time.Second {
			w.interval = d
		}
	}
}

// NewWatcher creates a watcher for the store's backing file.
func NewWatcher(store *Store, logger *zap.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		store:    store,
		interval: 5 * time.Second,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running || w.store.path == "" {
		w.mu.Unlock()
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	if info, err := os.Stat(w.store.path); err == nil {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()

	go w.loop(ctx)
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	w.running = false
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.store.path)
	if err != nil {
		w.logger.Warn("config stat failed", zap.String("path", w.store.path), zap.Error(err))
		return
	}
	w.mu.Lock()
	changed := info.ModTime().After(w.lastMod)
	if changed {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()
	if !changed {
		return
	}
	if err := w.store.Reload(); err != nil {
		// Keep the previous snapshot on a bad reload.
		w.logger.Error("config reload failed, keeping previous snapshot", zap.Error(err))
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.store.path))
}
