// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds the currently active icon providers and
// dispatches lookup and search calls to them by provider ID.
//
// The registry is explicitly constructed and passed by reference to its
// users; there is no package-level singleton. Exactly one registry exists
// per running workspace because exactly one is constructed at startup.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/AleutianAI/IconVault/services/icons/provider"
)

// Provider is a live glyph-rendering object serving one icon family.
//
// Implemented by glyph.FontProvider; the registry depends only on this
// interface so tests can register fakes.
type Provider interface {
	// ID returns the provider identifier.
	ID() provider.ID

	// Version returns the asset version the provider was built from.
	Version() string

	// Available reports whether the provider can serve icons.
	Available() bool

	// All returns every icon the provider serves.
	All() []provider.Icon

	// Lookup returns the icon with the given name.
	Lookup(name string) (provider.Icon, bool)

	// Search returns icons matching the query.
	Search(query string) []provider.Icon

	// Dispose releases the provider's assets.
	Dispose()
}

// Registry tracks the active providers.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[provider.ID]Provider
	logger    *slog.Logger
}

// New creates an empty registry.
//
// Inputs:
//
//	logger - Logger for registration events. If nil, slog.Default() is
//	used.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[provider.ID]Provider),
		logger:    logger.With(slog.String("component", "icon_registry")),
	}
}

// Register installs a provider as the live instance for its ID.
//
// The controller guarantees the previous instance for the ID has been
// unregistered and disposed first; if one is still present it is replaced
// and a warning logged.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	if _, exists := r.providers[p.ID()]; exists {
		r.logger.Warn("replacing registered provider",
			slog.String("provider", p.ID().String()),
			slog.String("version", p.Version()),
		)
	}
	r.providers[p.ID()] = p
	r.mu.Unlock()

	r.logger.Info("icon provider registered",
		slog.String("provider", p.ID().String()),
		slog.String("version", p.Version()),
	)
}

// Unregister removes the live instance for an ID.
//
// Outputs:
//
//	bool - True if a provider was removed.
func (r *Registry) Unregister(id provider.ID) bool {
	r.mu.Lock()
	_, exists := r.providers[id]
	delete(r.providers, id)
	r.mu.Unlock()

	if exists {
		r.logger.Info("icon provider unregistered", slog.String("provider", id.String()))
	}
	return exists
}

// Provider returns the live instance for an ID.
func (r *Registry) Provider(id provider.ID) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the IDs of all active providers, sorted.
func (r *Registry) IDs() []provider.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]provider.ID, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// All returns every active provider, ordered by provider ID.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]provider.ID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.providers[id])
	}
	return out
}

// Len returns the number of active providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Lookup resolves an icon by provider ID and icon name.
func (r *Registry) Lookup(id provider.ID, name string) (provider.Icon, bool) {
	p, ok := r.Provider(id)
	if !ok || !p.Available() {
		return provider.Icon{}, false
	}
	return p.Lookup(name)
}

// Search queries every available provider and returns hits grouped by
// provider ID.
func (r *Registry) Search(query string) map[provider.ID][]provider.Icon {
	r.mu.RLock()
	snapshot := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		snapshot = append(snapshot, p)
	}
	r.mu.RUnlock()

	out := make(map[provider.ID][]provider.Icon)
	for _, p := range snapshot {
		if !p.Available() {
			continue
		}
		if hits := p.Search(query); len(hits) > 0 {
			out[p.ID()] = hits
		}
	}
	return out
}
