// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces the write/rename bursts editors and atomic
// saves produce into a single reload.
const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a FileStore when its backing file changes on disk and
// pushes the fresh snapshot to the store's subscribers.
//
// Description:
//
//	Watches the parent directory rather than the file itself so atomic
//	rename-over saves (which replace the inode) keep being observed.
//
// Thread Safety: Start may be called once; Close is safe from any
// goroutine.
type Watcher struct {
	store    *FileStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

// NewWatcher creates a watcher over the store's backing file.
func NewWatcher(store *FileStore, logger *slog.Logger) (*Watcher, error) {
	if store == nil {
		return nil, fmt.Errorf("settings watcher: store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch settings dir: %w", err)
	}

	return &Watcher{
		store:    store,
		watcher:  fw,
		debounce: defaultDebounce,
		logger:   logger.With(slog.String("component", "settings_watcher")),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the watch loop until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Close stops the watch loop and releases the underlying watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	target := filepath.Clean(w.store.Path())

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watch error", slog.String("error", err.Error()))
		case <-fire:
			timer = nil
			fire = nil
			if err := w.store.Reload(); err != nil {
				w.logger.Warn("settings reload failed", slog.String("error", err.Error()))
				continue
			}
			w.logger.Info("settings reloaded from disk", slog.String("path", target))
			w.store.Notify()
		}
	}
}
