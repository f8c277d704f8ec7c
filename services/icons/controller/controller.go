// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package controller orchestrates the lifecycle of external icon
// providers: downloading their assets into the store, activating glyph
// providers in the registry, and reconciling both against the settings.
//
// All mutations run through one FIFO task queue, so a removal submitted
// while an install is in flight always executes after it, and two
// overlapping installs of the same provider collapse into one download.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/IconVault/services/icons/fetch"
	"github.com/AleutianAI/IconVault/services/icons/glyph"
	"github.com/AleutianAI/IconVault/services/icons/provider"
	"github.com/AleutianAI/IconVault/services/icons/registry"
	"github.com/AleutianAI/IconVault/services/icons/settings"
	"github.com/AleutianAI/IconVault/services/icons/store"
)

var controllerTracer = otel.Tracer("icons.controller")

// Fetcher downloads provider manifests and asset payloads. Implemented
// by fetch.Client; the controller depends on the interface so tests can
// install fakes.
type Fetcher interface {
	Manifest(ctx context.Context, cfg provider.Config) (*provider.Manifest, error)
	Download(ctx context.Context, m *provider.Manifest) (*fetch.Payload, error)
}

// Config holds the controller's collaborators.
type Config struct {
	// Settings is the settings store the controller reconciles against.
	Settings settings.Store

	// Assets is the embedded asset store.
	Assets *store.Store

	// Fetcher downloads manifests and assets.
	Fetcher Fetcher

	// Registry receives activated glyph providers.
	Registry *registry.Registry

	// Logger for lifecycle events. If nil, slog.Default() is used.
	Logger *slog.Logger

	// QueueSize bounds the mutation queue. Zero means the default.
	QueueSize int
}

// Validate checks that all required collaborators are present.
func (c *Config) Validate() error {
	if c.Settings == nil {
		return errors.New("controller config: Settings must not be nil")
	}
	if c.Assets == nil {
		return errors.New("controller config: Assets must not be nil")
	}
	if c.Fetcher == nil {
		return errors.New("controller config: Fetcher must not be nil")
	}
	if c.Registry == nil {
		return errors.New("controller config: Registry must not be nil")
	}
	return nil
}

// providerState is the controller's in-memory view of one provider.
type providerState struct {
	installed bool
	version   string

	// install is the in-flight install task, if any. Concurrent installs
	// of the same provider join it instead of queueing a duplicate.
	install *task
}

// installOpts selects the persistence and notification behavior of an
// install pass.
type installOpts struct {
	// enable sets the per-provider settings flag.
	enable bool

	// persist saves settings after the install (which also notifies).
	persist bool

	// preferCached activates from a stored record without consulting the
	// manifest. Used at startup and by reconciliation, where the goal is
	// filling gaps rather than upgrading versions.
	preferCached bool

	// changed, when non-nil, is set if the install actually mutated
	// something: downloaded a new record or changed the active provider
	// set. A steady-state re-install leaves it untouched. Reconciliation
	// uses it to decide whether a pass warrants a notification.
	changed *atomic.Bool
}

// Controller owns external icon provider lifecycles.
//
// Description:
//
//	Install, Remove, Sync, and Rehydrate mutate through the FIFO queue;
//	IsInstalled and Version are synchronous reads of in-memory state and
//	may briefly trail queued work.
//
// Thread Safety: Safe for concurrent use.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	queue  *taskQueue

	mu     sync.RWMutex
	states map[provider.ID]*providerState
	closed bool
}

// New creates a controller.
//
// The asset store is opened lazily on the first queued mutation, not
// here, so constructing a controller for a workspace that never enables
// external providers costs nothing.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(slog.String("component", "icon_controller"))
	return &Controller{
		cfg:    cfg,
		logger: logger,
		queue:  newTaskQueue(cfg.QueueSize, logger),
		states: make(map[provider.ID]*providerState),
	}, nil
}

// Install downloads a provider's assets, enables it in settings, persists
// the settings, and activates it.
//
// Description:
//
//	Idempotent: installing an already-installed provider re-checks the
//	manifest and re-downloads only on a version change. A second Install
//	issued while the first is still queued joins the in-flight task and
//	observes its outcome.
//
// Inputs:
//
//	ctx - Bounds the wait, not the work; queued work runs to completion.
//	id - The provider to install.
//
// Outputs:
//
//	error - ErrUnknownProvider for an unknown ID, ErrClosed after Close,
//	or the install failure.
func (c *Controller) Install(ctx context.Context, id provider.ID) error {
	ctx, span := controllerTracer.Start(ctx, "icons.Controller.Install")
	defer span.End()
	span.SetAttributes(attribute.String("provider", id.String()))

	cfg, err := provider.ConfigFor(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown provider")
		return err
	}

	err = c.install(ctx, cfg, installOpts{enable: true, persist: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "install failed")
	}
	return err
}

// install queues an install for cfg, joining an in-flight install task
// for the same provider when one exists.
func (c *Controller) install(ctx context.Context, cfg provider.Config, o installOpts) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	st := c.stateLocked(cfg.ID)
	if st.install != nil {
		t := st.install
		c.mu.Unlock()
		return t.wait(ctx)
	}

	t := newTask("install", func(taskCtx context.Context) error {
		defer func() {
			c.mu.Lock()
			if st.install != nil {
				st.install = nil
			}
			c.mu.Unlock()
		}()
		return c.runInstall(taskCtx, cfg, o)
	})
	st.install = t
	c.mu.Unlock()

	if err := c.queue.enqueue(ctx, t); err != nil {
		c.mu.Lock()
		if st.install == t {
			st.install = nil
		}
		c.mu.Unlock()
		return err
	}
	return t.wait(ctx)
}

// runInstall executes on the queue consumer.
func (c *Controller) runInstall(ctx context.Context, cfg provider.Config, o installOpts) error {
	if err := c.cfg.Assets.Init(ctx); err != nil {
		return fmt.Errorf("init asset store: %w", err)
	}

	rec, err := c.cfg.Assets.Get(ctx, cfg.ID)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return fmt.Errorf("read asset record: %w", err)
	}

	mutated := false
	if rec == nil || !o.preferCached {
		m, err := c.cfg.Fetcher.Manifest(ctx, cfg)
		if err != nil {
			return fmt.Errorf("fetch manifest for %s: %w", cfg.ID, err)
		}
		if rec == nil || rec.Version != m.Version {
			payload, err := c.cfg.Fetcher.Download(ctx, m)
			if err != nil {
				return fmt.Errorf("download assets for %s: %w", cfg.ID, err)
			}
			rec = &provider.AssetRecord{
				ID:             cfg.ID,
				Version:        m.Version,
				FontMimeType:   payload.FontMimeType,
				FontData:       payload.Font,
				MetadataFormat: payload.MetadataFormat,
				MetadataRaw:    payload.Metadata,
				UpdatedAt:      time.Now().UnixMilli(),
			}
			if err := c.cfg.Assets.Put(ctx, rec); err != nil {
				return fmt.Errorf("persist asset record: %w", err)
			}
			mutated = true
			c.logger.Info("icon provider assets installed",
				slog.String("provider", cfg.ID.String()),
				slog.String("version", rec.Version),
			)
		} else if err := c.cfg.Assets.Touch(ctx, cfg.ID); err != nil {
			c.logger.Warn("asset record touch failed",
				slog.String("provider", cfg.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	c.mu.Lock()
	st := c.stateLocked(cfg.ID)
	st.installed = true
	st.version = rec.Version
	c.mu.Unlock()

	if o.enable {
		c.cfg.Settings.SetProviderEnabled(cfg.ID, true)
	}
	if o.persist {
		if err := c.cfg.Settings.SaveAndNotify(ctx); err != nil {
			return fmt.Errorf("persist settings: %w", err)
		}
	}

	if c.activateIfEnabled(cfg, rec) {
		mutated = true
	}
	if mutated && o.changed != nil {
		o.changed.Store(true)
	}
	return nil
}

// Remove deactivates a provider, deletes its stored assets, disables it
// in settings, and persists the settings.
//
// Description:
//
//	Queued FIFO behind any in-flight install, so removing a provider
//	mid-install deterministically removes the finished install rather
//	than racing it. Removing a provider that is not installed is a
//	no-op apart from clearing the settings flag.
func (c *Controller) Remove(ctx context.Context, id provider.ID) error {
	ctx, span := controllerTracer.Start(ctx, "icons.Controller.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("provider", id.String()))

	if _, err := provider.ConfigFor(id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown provider")
		return err
	}

	err := c.queue.submit(ctx, "remove", func(taskCtx context.Context) error {
		return c.runRemove(taskCtx, id)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove failed")
	}
	return err
}

// runRemove executes on the queue consumer. The only path that deletes
// stored assets; reconciliation merely deactivates.
func (c *Controller) runRemove(ctx context.Context, id provider.ID) error {
	c.deactivate(id)

	if err := c.cfg.Assets.Init(ctx); err != nil {
		return fmt.Errorf("init asset store: %w", err)
	}
	if err := c.cfg.Assets.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete asset record: %w", err)
	}

	c.mu.Lock()
	st := c.stateLocked(id)
	st.installed = false
	st.version = ""
	c.mu.Unlock()

	c.cfg.Settings.SetProviderEnabled(id, false)
	if err := c.cfg.Settings.SaveAndNotify(ctx); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}

	c.logger.Info("icon provider removed", slog.String("provider", id.String()))
	return nil
}

// Sync reconciles active providers against the current settings:
// enabled providers are installed and activated (consulting the
// manifest, so version upgrades are picked up) and disabled ones are
// deactivated.
//
// Description:
//
//	Deactivation leaves the stored assets and installed state intact:
//	a disabled provider sits installed-but-inactive until it is either
//	re-enabled (activating straight from the cache) or explicitly
//	removed. Only Remove deletes assets.
//
//	Providers reconcile concurrently; the queue still serializes the
//	actual mutations, and a failure for one provider is logged without
//	disturbing the rest of the pass. Settings are not persisted by a
//	sync pass — it reacts to settings, it does not own them — and
//	subscribers are notified at most once, only when the pass actually
//	changed something.
func (c *Controller) Sync(ctx context.Context) error {
	ctx, span := controllerTracer.Start(ctx, "icons.Controller.Sync")
	defer span.End()

	err := c.reconcile(ctx, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
	}
	return err
}

// Rehydrate restores provider state at startup: installed flags are
// seeded from the asset store, enabled providers activate from their
// stored records, and an enabled provider whose record has gone missing
// is reinstalled.
func (c *Controller) Rehydrate(ctx context.Context) error {
	ctx, span := controllerTracer.Start(ctx, "icons.Controller.Rehydrate")
	defer span.End()

	if err := c.cfg.Assets.Init(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store init failed")
		return fmt.Errorf("init asset store: %w", err)
	}

	recs, err := c.cfg.Assets.GetAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store scan failed")
		return fmt.Errorf("scan asset records: %w", err)
	}

	c.mu.Lock()
	for _, rec := range recs {
		st := c.stateLocked(rec.ID)
		st.installed = true
		st.version = rec.Version
	}
	c.mu.Unlock()

	if err := c.reconcile(ctx, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rehydrate failed")
		return err
	}
	return nil
}

// reconcile drives every known provider toward the settings snapshot.
func (c *Controller) reconcile(ctx context.Context, preferCached bool) error {
	snap := c.cfg.Settings.Current()

	for id := range snap.ExternalProviders {
		if !provider.Known(id) {
			c.logger.Warn("settings reference unknown icon provider",
				slog.String("provider", id.String()))
		}
	}

	// Per-provider failures are logged inside the goroutines, never
	// returned: one provider's broken endpoint must not perturb the
	// others or cancel their waits.
	var changed atomic.Bool
	var g errgroup.Group
	for _, cfg := range provider.All() {
		cfg := cfg
		enabled := snap.UseExternalProviders && snap.Enabled(cfg.ID)
		g.Go(func() error {
			if enabled {
				if preferCached && c.IsInstalled(cfg.ID) && c.isActive(cfg.ID) {
					return nil
				}
				opts := installOpts{preferCached: preferCached, changed: &changed}
				if err := c.install(ctx, cfg, opts); err != nil {
					c.logger.Warn("provider reconcile failed",
						slog.String("provider", cfg.ID.String()),
						slog.String("error", err.Error()),
					)
				}
				return nil
			}

			if !c.isActive(cfg.ID) {
				return nil
			}
			err := c.queue.submit(ctx, "deactivate", func(context.Context) error {
				if c.deactivate(cfg.ID) {
					changed.Store(true)
				}
				return nil
			})
			if err != nil {
				c.logger.Warn("provider deactivate failed",
					slog.String("provider", cfg.ID.String()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	if changed.Load() {
		c.cfg.Settings.Notify()
	}
	return nil
}

// activateIfEnabled registers a glyph provider for rec when settings
// allow it, disposing a previously active instance on version change.
//
// Outputs:
//
//	bool - True if the active provider set changed; false when the same
//	version was already active (or already absent).
func (c *Controller) activateIfEnabled(cfg provider.Config, rec *provider.AssetRecord) bool {
	snap := c.cfg.Settings.Current()
	if !snap.UseExternalProviders || !snap.Enabled(cfg.ID) {
		return c.deactivate(cfg.ID)
	}

	if existing, ok := c.cfg.Registry.Provider(cfg.ID); ok {
		if existing.Version() == rec.Version && existing.Available() {
			return false
		}
		c.cfg.Registry.Unregister(cfg.ID)
		existing.Dispose()
	}

	c.cfg.Registry.Register(glyph.New(cfg, rec, c.logger))
	activeProviders.Set(float64(c.cfg.Registry.Len()))
	return true
}

// deactivate unregisters and disposes the active instance for id, if
// any. Stored assets and installed state are untouched; the provider
// stays installed-but-inactive.
func (c *Controller) deactivate(id provider.ID) bool {
	p, ok := c.cfg.Registry.Provider(id)
	if !ok {
		return false
	}
	c.cfg.Registry.Unregister(id)
	p.Dispose()
	activeProviders.Set(float64(c.cfg.Registry.Len()))
	return true
}

// isActive reports whether a provider is registered.
func (c *Controller) isActive(id provider.ID) bool {
	_, ok := c.cfg.Registry.Provider(id)
	return ok
}

// IsInstalled reports whether a provider's assets are installed.
//
// A synchronous read of in-memory state; it may trail queued mutations
// briefly.
func (c *Controller) IsInstalled(id provider.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[id]
	return ok && st.installed
}

// Version returns the installed asset version for a provider, or the
// empty string when it is not installed.
func (c *Controller) Version(id provider.ID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[id]
	if !ok {
		return ""
	}
	return st.version
}

// Close drains the queue, disposes active providers, and closes the
// asset store. Operations submitted after Close return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.queue.close()
	for _, id := range c.cfg.Registry.IDs() {
		c.deactivate(id)
	}
	return c.cfg.Assets.Close()
}

// stateLocked returns the state for id, creating it if needed. Caller
// holds c.mu.
func (c *Controller) stateLocked(id provider.ID) *providerState {
	st, ok := c.states[id]
	if !ok {
		st = &providerState{}
		c.states[id] = st
	}
	return st
}
