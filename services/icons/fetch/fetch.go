// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fetch retrieves icon provider manifests and the font/metadata
// assets they point at.
//
// Every request carries a fixed User-Agent and a bounded timeout. Failures
// are reported through the package sentinels (ErrManifest, ErrDownload,
// ErrChecksum) so callers can classify them without inspecting messages.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/IconVault/services/icons/provider"
)

// DefaultTimeout bounds every manifest and asset request.
const DefaultTimeout = 30 * time.Second

// userAgent is sent on every outbound request.
const userAgent = "IconVault/" + Version

// Version is the fetcher version advertised in the User-Agent header.
const Version = "0.1.0"

// maxFontBytes caps a font download. Provider fonts are hundreds of
// kilobytes; anything past this is a broken or hostile endpoint.
const maxFontBytes = 32 << 20

// maxMetadataBytes caps a metadata download.
const maxMetadataBytes = 16 << 20

// Payload is the result of downloading the assets a manifest points at.
type Payload struct {
	// Font is the raw font binary.
	Font []byte

	// FontMimeType is the MIME type of Font.
	FontMimeType string

	// Metadata is the icon metadata document.
	Metadata string

	// MetadataFormat describes the encoding of Metadata.
	MetadataFormat string
}

// Client fetches provider manifests and asset payloads.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewClient creates a fetch client with the default timeout.
//
// Inputs:
//
//	logger - Logger for download events. If nil, slog.Default() is used.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		validate:   validator.New(),
		logger:     logger.With(slog.String("component", "icon_fetch")),
	}
}

// WithTimeout sets a custom timeout for all requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Manifest fetches and validates the manifest for a provider.
//
// Description:
//
//	GETs the provider's fixed manifest URL, decodes the JSON descriptor,
//	applies defaults (fontMimeType, metadataFormat) and validates the
//	result. Non-200 status, empty body, malformed JSON and validation
//	failures all surface as ErrManifest.
//
// Inputs:
//
//	ctx - Context for cancellation. The client timeout still applies.
//	cfg - The provider configuration holding the manifest URL.
//
// Outputs:
//
//	*provider.Manifest - The validated manifest with defaults applied.
//	error - Wraps ErrManifest on any failure.
func (c *Client) Manifest(ctx context.Context, cfg provider.Config) (*provider.Manifest, error) {
	body, err := c.get(ctx, cfg.ManifestURL, maxMetadataBytes)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrManifest, cfg.ID, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w for %s: empty body", ErrManifest, cfg.ID)
	}

	var m provider.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w for %s: decode: %w", ErrManifest, cfg.ID, err)
	}
	if m.FontMimeType == "" {
		m.FontMimeType = "font/woff2"
	}
	if m.MetadataFormat == "" {
		m.MetadataFormat = "json"
	}
	m.Checksum = strings.ToLower(m.Checksum)

	if err := c.validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("%w for %s: invalid manifest: %w", ErrManifest, cfg.ID, err)
	}

	c.logger.Debug("manifest fetched",
		slog.String("provider", cfg.ID.String()),
		slog.String("version", m.Version),
		slog.Bool("has_checksum", m.Checksum != ""),
	)
	return &m, nil
}

// Download retrieves the font binary and metadata document a manifest
// points at, in two separate requests.
//
// Description:
//
//	Either sub-download failing (non-200, missing body) surfaces as
//	ErrDownload. When the manifest declares a checksum, the font payload
//	is verified against it and a mismatch surfaces as ErrChecksum.
//
// Outputs:
//
//	*Payload - Font bytes plus metadata text, with MIME/format copied
//	from the manifest.
//	error - Wraps ErrDownload or ErrChecksum.
func (c *Client) Download(ctx context.Context, m *provider.Manifest) (*Payload, error) {
	start := time.Now()

	font, err := c.get(ctx, m.FontURL, maxFontBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: font: %w", ErrDownload, err)
	}
	if len(font) == 0 {
		return nil, fmt.Errorf("%w: font: empty body", ErrDownload)
	}
	if m.Checksum != "" {
		sum := sha256.Sum256(font)
		if hex.EncodeToString(sum[:]) != m.Checksum {
			return nil, fmt.Errorf("%w: expected %s", ErrChecksum, m.Checksum)
		}
	}

	metadata, err := c.get(ctx, m.MetadataURL, maxMetadataBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrDownload, err)
	}
	if len(metadata) == 0 {
		return nil, fmt.Errorf("%w: metadata: empty body", ErrDownload)
	}

	c.logger.Debug("assets downloaded",
		slog.String("version", m.Version),
		slog.Int("font_bytes", len(font)),
		slog.Int("metadata_bytes", len(metadata)),
		slog.Duration("duration", time.Since(start)),
	)

	return &Payload{
		Font:           font,
		FontMimeType:   m.FontMimeType,
		Metadata:       string(metadata),
		MetadataFormat: m.MetadataFormat,
	}, nil
}

// get issues a GET with the fixed User-Agent and returns the body,
// bounded by limit.
func (c *Client) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}
	return body, nil
}
