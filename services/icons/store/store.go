// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists downloaded icon provider assets in an embedded
// BadgerDB database.
//
// One AssetRecord is kept per provider ID. The database is namespaced by a
// workspace identifier so that multiple workspace instances on the same
// device never share or corrupt each other's caches.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/IconVault/services/icons/provider"
)

var storeTracer = otel.Tracer("icons.store")

// keyPrefix namespaces asset records within the database.
const keyPrefix = "asset/"

// Config holds configuration for the asset store.
type Config struct {
	// BaseDir is the root directory for all icon caches.
	// Required unless InMemory is true.
	BaseDir string

	// WorkspaceID isolates this workspace's cache from other workspaces
	// on the same device. Required unless InMemory is true.
	WorkspaceID string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for store operations.
	// If nil, slog.Default() is used and BadgerDB's internal logging is
	// disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults rooted under the user's home
// directory.
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		BaseDir:    filepath.Join(homeDir, ".aleutian", "iconvault"),
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.InMemory {
		return nil
	}
	if c.BaseDir == "" {
		return errors.New("base_dir must not be empty")
	}
	if c.WorkspaceID == "" {
		return errors.New("workspace_id must not be empty")
	}
	return nil
}

// Store is the durable asset store: one AssetRecord per provider ID in an
// embedded BadgerDB database, opened lazily on first Init.
//
// Description:
//
//	Init is idempotent and single-flight: concurrent callers awaiting an
//	in-progress open all settle from the same attempt, and an open
//	failure clears the pending marker so a later Init can retry. Every
//	other operation fails with ErrNotInitialized until Init succeeds.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	db      *badger.DB
	opening chan struct{}
	openErr error
}

// New creates an asset store with the given configuration.
//
// The database is not opened until Init is called.
//
// Outputs:
//
//	*Store - The store. Call Close() when done.
//	error - Non-nil if the configuration is invalid.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "asset_store")),
	}, nil
}

// Path returns the on-disk database directory, or empty for in-memory
// stores.
func (s *Store) Path() string {
	if s.cfg.InMemory {
		return ""
	}
	return filepath.Join(s.cfg.BaseDir, sanitizeWorkspaceID(s.cfg.WorkspaceID), "assets")
}

// Init opens the database, creating it on first use.
//
// Description:
//
//	Idempotent. If an open is already in flight, the call waits for it
//	and returns its outcome; no duplicate open is ever issued. On
//	failure the pending marker is cleared so a later Init retries from
//	scratch.
//
// Inputs:
//
//	ctx - Context for cancellation while waiting on an in-flight open.
//
// Outputs:
//
//	error - Non-nil if the database cannot be opened.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.db != nil {
		s.mu.Unlock()
		return nil
	}
	if s.opening != nil {
		// Join the in-flight open.
		ch := s.opening
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("awaiting store open: %w", ctx.Err())
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.db != nil {
			return nil
		}
		return s.openErr
	}
	ch := make(chan struct{})
	s.opening = ch
	s.mu.Unlock()

	db, err := s.open()

	s.mu.Lock()
	if err != nil {
		s.openErr = fmt.Errorf("open asset store: %w", err)
	} else {
		s.db = db
		s.openErr = nil
	}
	err = s.openErr
	s.opening = nil
	close(ch)
	s.mu.Unlock()

	if err == nil {
		s.logger.Info("asset store opened",
			slog.String("path", s.Path()),
			slog.Bool("in_memory", s.cfg.InMemory),
		)
	}
	return err
}

// open performs the actual BadgerDB open. Called once per Init attempt.
func (s *Store) open() (*badger.DB, error) {
	var opts badger.Options
	if s.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		path := s.Path()
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithSyncWrites(s.cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}

// handle returns the open database or ErrNotInitialized.
func (s *Store) handle() (*badger.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// Get returns the asset record for a provider ID.
//
// Outputs:
//
//	*provider.AssetRecord - The stored record.
//	error - ErrRecordNotFound if absent, ErrNotInitialized before Init,
//	or the underlying transaction error.
func (s *Store) Get(ctx context.Context, id provider.ID) (*provider.AssetRecord, error) {
	_, span := storeTracer.Start(ctx, "icons.Store.Get")
	defer span.End()
	span.SetAttributes(attribute.String("provider_id", id.String()))

	db, err := s.handle()
	if err != nil {
		storeOpsTotal.WithLabelValues("get", "error").Inc()
		return nil, err
	}

	var rec provider.AssetRecord
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(assetKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			storeOpsTotal.WithLabelValues("get", "not_found").Inc()
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		storeOpsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}

	storeOpsTotal.WithLabelValues("get", "success").Inc()
	return &rec, nil
}

// Put upserts an asset record, fully replacing any prior record for the
// same provider ID. The write is a single atomic transaction.
func (s *Store) Put(ctx context.Context, rec *provider.AssetRecord) error {
	_, span := storeTracer.Start(ctx, "icons.Store.Put")
	defer span.End()

	if rec == nil {
		return errors.New("record must not be nil")
	}
	span.SetAttributes(
		attribute.String("provider_id", rec.ID.String()),
		attribute.String("version", rec.Version),
		attribute.Int("font_bytes", len(rec.FontData)),
	)

	db, err := s.handle()
	if err != nil {
		storeOpsTotal.WithLabelValues("put", "error").Inc()
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		storeOpsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("marshal asset %s: %w", rec.ID, err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(assetKey(rec.ID), data)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put failed")
		storeOpsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("put asset %s: %w", rec.ID, err)
	}

	storeOpsTotal.WithLabelValues("put", "success").Inc()
	storeRecordBytes.WithLabelValues(rec.ID.String()).Set(float64(len(data)))
	s.logger.Debug("asset record written",
		slog.String("provider", rec.ID.String()),
		slog.String("version", rec.Version),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// Delete removes the record for a provider ID. Deleting an absent record
// is a no-op.
func (s *Store) Delete(ctx context.Context, id provider.ID) error {
	_, span := storeTracer.Start(ctx, "icons.Store.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("provider_id", id.String()))

	db, err := s.handle()
	if err != nil {
		storeOpsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Delete(assetKey(id))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		storeOpsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete asset %s: %w", id, err)
	}

	storeOpsTotal.WithLabelValues("delete", "success").Inc()
	storeRecordBytes.DeleteLabelValues(id.String())
	return nil
}

// GetAll returns every stored asset record, sorted by provider ID.
//
// Used at startup to rehydrate the controller's installed/version maps.
func (s *Store) GetAll(ctx context.Context) ([]*provider.AssetRecord, error) {
	_, span := storeTracer.Start(ctx, "icons.Store.GetAll")
	defer span.End()

	db, err := s.handle()
	if err != nil {
		storeOpsTotal.WithLabelValues("get_all", "error").Inc()
		return nil, err
	}

	var records []*provider.AssetRecord
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec provider.AssetRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		storeOpsTotal.WithLabelValues("get_all", "error").Inc()
		return nil, fmt.Errorf("scan assets: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	span.SetAttributes(attribute.Int("record_count", len(records)))
	storeOpsTotal.WithLabelValues("get_all", "success").Inc()
	return records, nil
}

// Touch updates the UpdatedAt timestamp of an existing record.
func (s *Store) Touch(ctx context.Context, id provider.ID) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UnixMilli()
	return s.Put(ctx, rec)
}

// Close releases the underlying database connection.
//
// Description:
//
//	Tolerates being called when never opened or already closed. After
//	Close, a subsequent Init reopens the database cleanly.
//
// Outputs:
//
//	error - Non-nil if the database close fails.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.openErr = nil
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close asset store: %w", err)
	}
	s.logger.Info("asset store closed")
	return nil
}

// assetKey builds the database key for a provider ID.
func assetKey(id provider.ID) []byte {
	return []byte(keyPrefix + string(id))
}

// sanitizeWorkspaceID maps a workspace identifier to a filesystem-safe
// directory name.
func sanitizeWorkspaceID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, id)
}
