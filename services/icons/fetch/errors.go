// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fetch

import "errors"

var (
	// ErrManifest indicates the provider manifest could not be fetched or
	// decoded: non-200 status, empty body, malformed JSON, or a manifest
	// that fails validation.
	ErrManifest = errors.New("manifest fetch failed")

	// ErrDownload indicates the font or metadata sub-download failed:
	// non-200 status or missing body.
	ErrDownload = errors.New("asset download failed")

	// ErrChecksum indicates the downloaded font did not match the SHA256
	// checksum declared in the manifest.
	ErrChecksum = errors.New("font checksum mismatch")
)
