// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import "errors"

// ErrUnknownProvider indicates a provider ID outside the compiled-in set.
//
// Requesting configuration for an unknown ID is a programmer error, not a
// recoverable runtime condition. Callers should treat it as fatal to the
// operation and never retry.
var ErrUnknownProvider = errors.New("unknown icon provider")
