// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package settings holds the externally-owned configuration the icon
// controller reconciles against: the global external-providers toggle and
// the per-provider enable flags.
//
// The controller reads and writes these values but does not own their
// lifecycle. Two collaborator methods matter to it: SaveAndNotify
// (persist + notify) and Notify (notify only) — the distinction keeps
// reconciliation passes from re-triggering a settings save loop.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/IconVault/services/icons/provider"
)

// Settings is a snapshot of the icon-provider configuration.
type Settings struct {
	// UseExternalProviders is the global toggle. When false no external
	// provider may be active regardless of per-provider flags.
	UseExternalProviders bool `json:"use_external_providers"`

	// ExternalProviders holds the per-provider enable flags.
	ExternalProviders map[provider.ID]bool `json:"external_providers"`
}

// Default returns settings with the feature off and no flags set.
func Default() Settings {
	return Settings{
		ExternalProviders: make(map[provider.ID]bool),
	}
}

// Enabled reports whether the per-provider flag for id is set.
func (s Settings) Enabled(id provider.ID) bool {
	return s.ExternalProviders[id]
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s Settings) Clone() Settings {
	out := s
	out.ExternalProviders = make(map[provider.ID]bool, len(s.ExternalProviders))
	for id, enabled := range s.ExternalProviders {
		out.ExternalProviders[id] = enabled
	}
	return out
}

// Store is the collaborator contract the controller depends on.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Current returns a snapshot of the settings.
	Current() Settings

	// SetProviderEnabled flips the per-provider flag in memory. The
	// change is not durable until SaveAndNotify.
	SetProviderEnabled(id provider.ID, enabled bool)

	// SaveAndNotify persists the settings and notifies subscribers.
	SaveAndNotify(ctx context.Context) error

	// Notify notifies subscribers without persisting.
	Notify()
}

// FileStore is a JSON-file-backed settings store with subscriber
// callbacks.
//
// Description:
//
//	Writes go through a temp file plus atomic rename so a crash never
//	leaves a half-written settings file. Subscribers are invoked
//	synchronously, in registration order, on every SaveAndNotify and
//	Notify.
//
// Thread Safety: Safe for concurrent use.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current Settings
	subs    []func(Settings)
}

// NewFileStore creates a store backed by the JSON file at path.
//
// Description:
//
//	Loads the file if it exists; a missing file yields defaults (first
//	run). A malformed file is an error, not silently reset, so a user's
//	configuration is never clobbered by a bad read.
//
// Outputs:
//
//	*FileStore - The store.
//	error - Non-nil if the file exists but cannot be read or decoded.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("settings path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileStore{
		path:    path,
		logger:  logger.With(slog.String("component", "settings_store")),
		current: Default(),
	}
	if err := fs.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return fs, nil
}

// Path returns the backing file path.
func (fs *FileStore) Path() string {
	return fs.path
}

// Current returns a snapshot of the settings.
func (fs *FileStore) Current() Settings {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.current.Clone()
}

// SetUseExternalProviders flips the global toggle in memory.
func (fs *FileStore) SetUseExternalProviders(enabled bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.current.UseExternalProviders = enabled
}

// SetProviderEnabled flips the per-provider flag in memory.
func (fs *FileStore) SetProviderEnabled(id provider.ID, enabled bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.current.ExternalProviders == nil {
		fs.current.ExternalProviders = make(map[provider.ID]bool)
	}
	fs.current.ExternalProviders[id] = enabled
}

// Subscribe registers a callback invoked on every notification.
func (fs *FileStore) Subscribe(fn func(Settings)) {
	if fn == nil {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.subs = append(fs.subs, fn)
}

// SaveAndNotify persists the settings atomically and notifies
// subscribers.
func (fs *FileStore) SaveAndNotify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	fs.mu.RLock()
	snap := fs.current.Clone()
	fs.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0750); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmpPath := fs.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0640); err != nil {
		return fmt.Errorf("write settings temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename settings file: %w", err)
	}

	fs.logger.Debug("settings saved", slog.String("path", fs.path))
	fs.notify(snap)
	return nil
}

// Notify notifies subscribers with the current snapshot without
// persisting.
func (fs *FileStore) Notify() {
	fs.notify(fs.Current())
}

// Reload re-reads the backing file into memory. Used after an external
// process rewrites the file.
func (fs *FileStore) Reload() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("decode settings %s: %w", fs.path, err)
	}
	if loaded.ExternalProviders == nil {
		loaded.ExternalProviders = make(map[provider.ID]bool)
	}

	fs.mu.Lock()
	fs.current = loaded
	fs.mu.Unlock()
	return nil
}

func (fs *FileStore) notify(snap Settings) {
	fs.mu.RLock()
	subs := make([]func(Settings), len(fs.subs))
	copy(subs, fs.subs)
	fs.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
