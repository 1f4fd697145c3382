// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tombee/mcpgate/internal/log"
)

// DefaultDebounceDelay is how long the watcher waits after the last change
// before reloading.
const DefaultDebounceDelay = 100 * time.Millisecond

// ProvidersListener receives each newly loaded provider set.
type ProvidersListener func(providers map[string]*ProviderConfig)

// Watcher keeps an up-to-date provider set by reloading the configuration
// file whenever it changes. A file that fails to parse is logged and the
// previous set is kept.
type Watcher struct {
	// fsWatcher is the underlying filesystem watcher
	fsWatcher *fsnotify.Watcher

	store  *ConfigStore
	path   string
	logger *slog.Logger

	// debounceDelay is the delay before reloading after file changes
	debounceDelay time.Duration

	// mu protects current, listeners and pending
	mu        sync.RWMutex
	current   map[string]*ProviderConfig
	listeners []ProvidersListener
	pending   *time.Timer

	// ctx is the watcher's lifecycle context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Store loads the configuration file
	Store *ConfigStore

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// DebounceDelay defaults to DefaultDebounceDelay
	DebounceDelay time.Duration
}

// NewWatcher loads the current configuration and starts watching it. The
// containing directory is watched so that editors which replace the file
// by rename are still seen.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("config store is required")
	}

	path, err := cfg.Store.Path()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	initial, err := cfg.Store.Load()
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	debounceDelay := cfg.DebounceDelay
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounceDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher:     fsWatcher,
		store:         cfg.Store,
		path:          path,
		logger:        log.WithComponent(cfg.Logger, "config-watcher"),
		debounceDelay: debounceDelay,
		current:       initial,
		ctx:           ctx,
		cancel:        cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	w.logger.Debug("watching provider config", "path", path, "servers", len(initial))
	return w, nil
}

// Providers returns the current provider set as a sorted slice. It can be
// passed to NewToolFilter as a ProviderLister.
func (w *Watcher) Providers() []*ProviderConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]*ProviderConfig, 0, len(w.current))
	for _, name := range SortedNames(w.current) {
		out = append(out, w.current[name])
	}
	return out
}

// Subscribe registers a listener for reloads.
func (w *Watcher) Subscribe(l ProvidersListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// processEvents forwards changes to the config file into debounced reloads.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				w.scheduleReload()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", log.Error(err))

		case <-w.ctx.Done():
			return
		}
	}
}

// scheduleReload (re)arms the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.reload)
}

// reload loads the file and publishes the result.
func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}

	providers, err := w.store.Load()
	if err != nil {
		w.logger.Warn("provider config changed but could not be loaded, keeping previous servers",
			"path", w.path, log.Error(err))
		return
	}

	w.mu.Lock()
	w.pending = nil
	w.current = providers
	listeners := append([]ProvidersListener(nil), w.listeners...)
	w.mu.Unlock()

	w.logger.Info("provider config reloaded", "path", w.path, "servers", len(providers))
	for _, l := range listeners {
		l(providers)
	}
}

// Close shuts down the watcher.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsWatcher.Close()
}
