// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package glyph implements the concrete font-backed icon provider built
// from a stored asset record.
package glyph

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/IconVault/services/icons/provider"
)

// iconMeta is one entry in a provider's metadata document.
type iconMeta struct {
	Unicode string `json:"unicode"`
	Label   string `json:"label"`
}

// FontProvider renders icons from a downloaded font plus its metadata
// document.
//
// Description:
//
//	Built from an AssetRecord at activation time. Malformed metadata
//	yields an empty icon set and Available() == false; it is logged,
//	never propagated, so a broken provider can never take down the
//	controller.
//
// Thread Safety: Safe for concurrent use. The icon set is immutable
// after construction; only Dispose mutates state.
type FontProvider struct {
	cfg     provider.Config
	version string
	font    []byte
	mime    string

	icons     map[string]provider.Icon
	sorted    []provider.Icon
	available bool

	mu       sync.RWMutex
	disposed bool

	logger *slog.Logger
}

// New builds a font provider from a provider config and its stored asset
// record.
//
// Inputs:
//
//	cfg - The compiled-in provider configuration.
//	rec - The stored asset record. Must not be nil.
//	logger - Logger for parse failures. If nil, slog.Default() is used.
//
// Outputs:
//
//	*FontProvider - The provider. Available() reports whether the
//	metadata parsed; construction itself never fails.
func New(cfg provider.Config, rec *provider.AssetRecord, logger *slog.Logger) *FontProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FontProvider{
		cfg:     cfg,
		version: rec.Version,
		font:    rec.FontData,
		mime:    rec.FontMimeType,
		icons:   make(map[string]provider.Icon),
		logger:  logger.With(slog.String("component", "glyph_provider"), slog.String("provider", cfg.ID.String())),
	}

	var raw map[string]iconMeta
	if err := json.Unmarshal([]byte(rec.MetadataRaw), &raw); err != nil {
		p.logger.Error("icon metadata parse failed",
			slog.String("version", rec.Version),
			slog.String("error", err.Error()),
		)
		return p
	}

	for id, meta := range raw {
		if id == "" || meta.Unicode == "" {
			continue
		}
		label := meta.Label
		if label == "" {
			label = id
		}
		p.icons[id] = provider.Icon{ID: id, Label: label, Unicode: meta.Unicode}
	}

	p.sorted = make([]provider.Icon, 0, len(p.icons))
	for _, ic := range p.icons {
		p.sorted = append(p.sorted, ic)
	}
	sort.Slice(p.sorted, func(i, j int) bool { return p.sorted[i].ID < p.sorted[j].ID })

	p.available = true
	p.logger.Debug("glyph provider built",
		slog.String("version", rec.Version),
		slog.Int("icon_count", len(p.icons)),
	)
	return p
}

// ID returns the provider identifier.
func (p *FontProvider) ID() provider.ID {
	return p.cfg.ID
}

// Version returns the asset version the provider was built from.
func (p *FontProvider) Version() string {
	return p.version
}

// FontFamily returns the font-family name the provider's glyphs render
// with.
func (p *FontProvider) FontFamily() string {
	return p.cfg.FontFamily
}

// FontData returns the raw font binary and its MIME type.
func (p *FontProvider) FontData() ([]byte, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.disposed {
		return nil, ""
	}
	return p.font, p.mime
}

// Available reports whether the metadata parsed and icons can be served.
func (p *FontProvider) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available && !p.disposed
}

// All returns every icon, sorted by icon ID.
func (p *FontProvider) All() []provider.Icon {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.disposed {
		return nil
	}
	out := make([]provider.Icon, len(p.sorted))
	copy(out, p.sorted)
	return out
}

// Lookup returns the icon with the given ID.
func (p *FontProvider) Lookup(name string) (provider.Icon, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.disposed {
		return provider.Icon{}, false
	}
	ic, ok := p.icons[name]
	return ic, ok
}

// Search returns icons whose ID or label contains the query,
// case-insensitively, sorted by icon ID.
func (p *FontProvider) Search(query string) []provider.Icon {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.disposed || query == "" {
		return nil
	}
	q := strings.ToLower(query)
	var out []provider.Icon
	for _, ic := range p.sorted {
		if strings.Contains(strings.ToLower(ic.ID), q) || strings.Contains(strings.ToLower(ic.Label), q) {
			out = append(out, ic)
		}
	}
	return out
}

// Dispose releases the provider's assets. Subsequent calls are no-ops;
// lookups after Dispose return nothing.
func (p *FontProvider) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return
	}
	p.disposed = true
	p.font = nil
	p.icons = nil
	p.sorted = nil
	p.logger.Debug("glyph provider disposed", slog.String("version", p.version))
}
