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

import (
	"fmt"
	"sort"
)

// configs is the compiled-in provider table. One entry per ID; never
// mutated after init.
var configs = map[ID]Config{
	FontAwesomeRegular: {
		ID:          FontAwesomeRegular,
		DisplayName: "Font Awesome (regular)",
		ManifestURL: "https://assets.aleutian.ai/icons/fontawesome-regular/manifest.json",
		FontFamily:  "Font Awesome 7 Free",
	},
	FontAwesomeSolid: {
		ID:          FontAwesomeSolid,
		DisplayName: "Font Awesome (solid)",
		ManifestURL: "https://assets.aleutian.ai/icons/fontawesome-solid/manifest.json",
		FontFamily:  "Font Awesome 7 Free",
	},
	BootstrapIcons: {
		ID:          BootstrapIcons,
		DisplayName: "Bootstrap Icons",
		ManifestURL: "https://assets.aleutian.ai/icons/bootstrap-icons/manifest.json",
		FontFamily:  "bootstrap-icons",
	},
	MaterialIcons: {
		ID:          MaterialIcons,
		DisplayName: "Material Symbols",
		ManifestURL: "https://assets.aleutian.ai/icons/material-icons/manifest.json",
		FontFamily:  "Material Symbols Outlined",
	},
	Phosphor: {
		ID:          Phosphor,
		DisplayName: "Phosphor",
		ManifestURL: "https://assets.aleutian.ai/icons/phosphor/manifest.json",
		FontFamily:  "Phosphor",
	},
	RPGAwesome: {
		ID:          RPGAwesome,
		DisplayName: "RPG Awesome",
		ManifestURL: "https://assets.aleutian.ai/icons/rpg-awesome/manifest.json",
		FontFamily:  "rpgawesome",
	},
}

// ConfigFor returns the compiled-in configuration for a provider ID.
//
// Description:
//
//	Pure, synchronous lookup into the static provider table. An unknown
//	ID yields ErrUnknownProvider, which callers must treat as a
//	programmer error (assertion-style, never retried).
//
// Inputs:
//
//	id - The provider identifier.
//
// Outputs:
//
//	Config - The provider configuration (by value).
//	error - ErrUnknownProvider if id is not in the compiled-in set.
func ConfigFor(id ID) (Config, error) {
	cfg, ok := configs[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return cfg, nil
}

// Known reports whether id is one of the compiled-in providers.
func Known(id ID) bool {
	_, ok := configs[id]
	return ok
}

// All returns every compiled-in provider configuration, sorted by ID for
// deterministic iteration.
func All() []Config {
	out := make([]Config, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
