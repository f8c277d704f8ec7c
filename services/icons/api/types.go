// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import "github.com/AleutianAI/IconVault/services/icons/provider"

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// ProviderStatus describes one known provider.
type ProviderStatus struct {
	// ID is the provider identifier.
	ID provider.ID `json:"id"`

	// DisplayName is the human-readable provider name.
	DisplayName string `json:"display_name"`

	// Enabled reports the per-provider settings flag.
	Enabled bool `json:"enabled"`

	// Installed reports whether the provider's assets are cached.
	Installed bool `json:"installed"`

	// Active reports whether the provider is registered and serving.
	Active bool `json:"active"`

	// Version is the installed asset version, empty if not installed.
	Version string `json:"version,omitempty"`
}

// ProvidersResponse is the provider listing payload.
type ProvidersResponse struct {
	Providers []ProviderStatus `json:"providers"`
}

// InstallResponse is returned after a successful install.
type InstallResponse struct {
	ID      provider.ID `json:"id"`
	Version string      `json:"version"`
}

// IconsResponse is the icon listing payload for one provider.
type IconsResponse struct {
	Provider provider.ID     `json:"provider"`
	Icons    []provider.Icon `json:"icons"`
	Count    int             `json:"count"`
}

// SearchResponse groups search hits by provider.
type SearchResponse struct {
	Results map[provider.ID][]provider.Icon `json:"results"`
	Count   int                             `json:"count"`
}
