// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package glyph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/IconVault/services/icons/provider"
)

func faConfig() provider.Config {
	return provider.Config{
		ID:          provider.FontAwesomeRegular,
		DisplayName: "Font Awesome (regular)",
		ManifestURL: "https://example.com/manifest.json",
		FontFamily:  "Font Awesome 7 Free",
	}
}

func record(metadata string) *provider.AssetRecord {
	return &provider.AssetRecord{
		ID:             provider.FontAwesomeRegular,
		Version:        "7.1.0",
		FontMimeType:   "font/woff2",
		FontData:       []byte{0x77, 0x4f, 0x46, 0x32},
		MetadataFormat: "json",
		MetadataRaw:    metadata,
	}
}

// TestFontProvider_Build verifies a well-formed record produces a usable
// provider.
func TestFontProvider_Build(t *testing.T) {
	p := New(faConfig(), record(`{
		"home":{"unicode":"f015","label":"Home"},
		"heart":{"unicode":"f004","label":"Heart"},
		"unlabeled":{"unicode":"f999"}
	}`), nil)

	assert.True(t, p.Available())
	assert.Equal(t, provider.FontAwesomeRegular, p.ID())
	assert.Equal(t, "7.1.0", p.Version())
	assert.Equal(t, "Font Awesome 7 Free", p.FontFamily())

	font, mime := p.FontData()
	assert.NotEmpty(t, font)
	assert.Equal(t, "font/woff2", mime)

	all := p.All()
	require.Len(t, all, 3)
	// Sorted by icon ID.
	assert.Equal(t, "heart", all[0].ID)
	assert.Equal(t, "home", all[1].ID)
	assert.Equal(t, "unlabeled", all[2].ID)
	// Missing label falls back to the ID.
	assert.Equal(t, "unlabeled", all[2].Label)

	ic, ok := p.Lookup("home")
	require.True(t, ok)
	assert.Equal(t, "f015", ic.Unicode)
	assert.Equal(t, "Home", ic.Label)

	_, ok = p.Lookup("missing")
	assert.False(t, ok)
}

// TestFontProvider_Search verifies case-insensitive search over IDs and
// labels.
func TestFontProvider_Search(t *testing.T) {
	p := New(faConfig(), record(`{
		"home":{"unicode":"f015","label":"Home"},
		"house-chimney":{"unicode":"e3af","label":"House Chimney"},
		"heart":{"unicode":"f004","label":"Heart"}
	}`), nil)

	hits := p.Search("HO")
	require.Len(t, hits, 2)
	assert.Equal(t, "home", hits[0].ID)
	assert.Equal(t, "house-chimney", hits[1].ID)

	// Matches labels too.
	hits = p.Search("chimney")
	require.Len(t, hits, 1)
	assert.Equal(t, "house-chimney", hits[0].ID)

	assert.Empty(t, p.Search(""))
	assert.Empty(t, p.Search("zebra"))
}

// TestFontProvider_MalformedMetadata verifies parse failures yield an
// empty, unavailable provider without panicking.
func TestFontProvider_MalformedMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
	}{
		{"truncated json", `{"home":{"unico`},
		{"wrong shape", `["home","heart"]`},
		{"not json", `<xml/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(faConfig(), record(tt.metadata), nil)
			assert.False(t, p.Available())
			assert.Empty(t, p.All())
			_, ok := p.Lookup("home")
			assert.False(t, ok)
		})
	}
}

// TestFontProvider_SkipsInvalidEntries verifies entries without a
// codepoint are dropped.
func TestFontProvider_SkipsInvalidEntries(t *testing.T) {
	p := New(faConfig(), record(`{
		"good":{"unicode":"f001","label":"Good"},
		"no-unicode":{"label":"Broken"}
	}`), nil)

	assert.True(t, p.Available())
	all := p.All()
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].ID)
}

// TestFontProvider_Dispose verifies disposal releases assets and is
// idempotent.
func TestFontProvider_Dispose(t *testing.T) {
	p := New(faConfig(), record(`{"home":{"unicode":"f015","label":"Home"}}`), nil)
	require.True(t, p.Available())

	p.Dispose()
	p.Dispose() // Idempotent.

	assert.False(t, p.Available())
	assert.Empty(t, p.All())
	assert.Empty(t, p.Search("home"))

	font, _ := p.FontData()
	assert.Nil(t, font)

	_, ok := p.Lookup("home")
	assert.False(t, ok)
}
