// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// DefaultWatchDebounce coalesces the burst of events an editor save produces.
const DefaultWatchDebounce = 150 * time.Millisecond

// WatchFunc receives a freshly loaded config, or the error that stopped it
// from loading. A failed reload leaves the previous config in force.
type WatchFunc func(cfg *Config, err error)

// Watch reloads path whenever it changes and passes the result to onChange.
// The parent directory is watched so editors that save by rename are seen.
// Watch returns once the watcher is running; it stops when ctx is done.
func Watch(ctx context.Context, path string, onChange WatchFunc) error {
	return WatchWithDebounce(ctx, path, DefaultWatchDebounce, onChange)
}

// WatchWithDebounce is Watch with an explicit debounce interval.
func WatchWithDebounce(ctx context.Context, path string, debounce time.Duration, onChange WatchFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go processEvents(ctx, watcher, abs, debounce, onChange)
	return nil
}

func processEvents(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, onChange WatchFunc) {
	defer watcher.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			pending = true

		case <-timer.C:
			pending = false
			if _, err := os.Stat(path); err != nil {
				// renamed away mid-save; the Create that follows re-arms
				continue
			}
			cfg, err := LoadFromPath(path)
			onChange(cfg, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			onChange(nil, fmt.Errorf("config watcher: %w", err))
		}
	}
}
