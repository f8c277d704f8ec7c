// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provider defines the shared types for external icon providers:
// the closed set of provider identifiers, their compiled-in configuration,
// and the manifest/asset records exchanged between the fetcher, the store,
// and the controller.
package provider

// ID identifies an external icon provider.
//
// The set of valid IDs is closed and compiled in (see Registry). An ID is
// the primary key for every per-provider structure: asset records, settings
// flags, and controller state.
type ID string

const (
	// FontAwesomeRegular is the Font Awesome regular-weight family.
	FontAwesomeRegular ID = "fontawesome-regular"

	// FontAwesomeSolid is the Font Awesome solid-weight family.
	FontAwesomeSolid ID = "fontawesome-solid"

	// BootstrapIcons is the Bootstrap Icons family.
	BootstrapIcons ID = "bootstrap-icons"

	// MaterialIcons is the Google Material Symbols family.
	MaterialIcons ID = "material-icons"

	// Phosphor is the Phosphor icon family.
	Phosphor ID = "phosphor"

	// RPGAwesome is the RPG Awesome icon family.
	RPGAwesome ID = "rpg-awesome"
)

// String returns the ID as a plain string.
func (id ID) String() string {
	return string(id)
}

// Config is the static, compiled-in description of a provider.
//
// One Config exists per ID for the lifetime of the process. Configs are
// never mutated; ConfigFor returns them by value.
type Config struct {
	// ID is the provider identifier.
	ID ID

	// DisplayName is the human-readable provider name.
	DisplayName string

	// ManifestURL is the fixed HTTPS URL of the provider's manifest.
	ManifestURL string

	// FontFamily is the CSS font-family name the provider's glyphs render
	// with once the font is loaded.
	FontFamily string
}

// Manifest is the small descriptor fetched from a provider's ManifestURL.
//
// A Manifest is created per install attempt and discarded after use; its
// fields are folded into an AssetRecord on success. It is never persisted
// directly.
type Manifest struct {
	// Version is the provider release the manifest describes.
	Version string `json:"version" validate:"required"`

	// FontURL points at the font binary for this version.
	FontURL string `json:"font" validate:"required,url"`

	// MetadataURL points at the icon metadata document for this version.
	MetadataURL string `json:"metadata" validate:"required,url"`

	// FontMimeType is the MIME type of the font payload.
	// Optional; defaults to "font/woff2".
	FontMimeType string `json:"fontMimeType,omitempty"`

	// MetadataFormat describes the metadata encoding. Only "json" is
	// supported. Optional; defaults to "json".
	MetadataFormat string `json:"metadataFormat,omitempty" validate:"omitempty,oneof=json"`

	// Checksum is an optional SHA256 hex digest of the font payload.
	// When present the download is verified against it.
	Checksum string `json:"checksum,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

// AssetRecord is the persisted unit for one installed provider: the font
// binary plus icon metadata at a specific version.
//
// At most one record exists per provider ID; a store put fully replaces any
// prior record. The record is owned by the asset store. The controller holds
// only derived summaries (installed flag, version) in memory.
type AssetRecord struct {
	// ID is the provider this record belongs to.
	ID ID `json:"id"`

	// Version is the provider release the assets were downloaded at.
	Version string `json:"version"`

	// FontMimeType is the MIME type of FontData.
	FontMimeType string `json:"font_mime_type"`

	// FontData is the raw font binary.
	FontData []byte `json:"font_data"`

	// MetadataFormat describes the encoding of MetadataRaw ("json").
	MetadataFormat string `json:"metadata_format"`

	// MetadataRaw is the icon metadata document as downloaded.
	MetadataRaw string `json:"metadata_raw"`

	// UpdatedAt is when the record was written (Unix milliseconds UTC).
	UpdatedAt int64 `json:"updated_at"`
}

// Icon is a single renderable glyph exposed by an active provider.
type Icon struct {
	// ID is the icon name within its provider (e.g. "home").
	ID string `json:"id"`

	// Label is the human-readable icon name (e.g. "Home").
	Label string `json:"label"`

	// Unicode is the hex codepoint of the glyph in the provider font
	// (e.g. "f015").
	Unicode string `json:"unicode"`
}
