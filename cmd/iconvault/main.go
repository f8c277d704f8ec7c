// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command iconvault manages the external icon provider cache.
//
// Usage:
//
//	iconvault install fontawesome-regular phosphor
//	iconvault list
//	iconvault search house
//	iconvault sync
//	iconvault remove phosphor
//	iconvault serve -port 8080
//
// Example requests against the server:
//
//	# Health check
//	curl http://localhost:8080/health
//
//	# List providers
//	curl http://localhost:8080/v1/icons/providers | jq
//
//	# Install a provider
//	curl -X POST http://localhost:8080/v1/icons/providers/phosphor/install
package main

import (
	"log"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
