// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for
// security-critical operations.
//
// This package contains validators for user-provided inputs that end up
// in file paths, database keys, or URLs. Using these validators prevents
// path traversal and key injection.
package validation

import (
	"fmt"
	"regexp"
)

// providerIDPattern matches valid icon provider identifiers.
// Allows: lowercase letters, digits, hyphens (fontawesome-regular).
// Max length: 64 characters.
var providerIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{0,63}$`)

// workspaceIDPattern matches valid workspace identifiers.
// Allows: letters, digits, dots, underscores, hyphens.
// Max length: 128 characters.
var workspaceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,127}$`)

// ValidateProviderID validates an icon provider identifier before it is
// used in store keys and asset URLs.
//
// Valid identifiers:
//   - 1-64 characters
//   - Lowercase letters a-z
//   - Digits 0-9
//   - Hyphens (-) between segments
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateProviderID(id); err != nil {
//	    return fmt.Errorf("invalid provider: %w", err)
//	}
func ValidateProviderID(id string) error {
	if id == "" {
		return fmt.Errorf("provider id cannot be empty")
	}
	if !providerIDPattern.MatchString(id) {
		return fmt.Errorf("invalid provider id format: %q (must be 1-64 lowercase alphanumeric chars or hyphens)", id)
	}
	return nil
}

// ValidateWorkspaceID validates a workspace identifier before it is used
// as an on-disk cache directory name.
//
// Returns an error if the identifier is empty, too long, or contains
// characters with path meaning (slashes, "..").
func ValidateWorkspaceID(id string) error {
	if id == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}
	if !workspaceIDPattern.MatchString(id) {
		return fmt.Errorf("invalid workspace id format: %q (must be 1-128 alphanumeric chars, dots, underscores, or hyphens)", id)
	}
	return nil
}
