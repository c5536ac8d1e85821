// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command vejviser validates LLM-generated KM24 monitoring recipes
// against the live module catalog.
//
// Usage:
//
//	# Validate a recipe document from a file
//	KM24_API_KEY=... vejviser validate recipe.json --goal "Asbest i Aarhus"
//
//	# Run the HTTP gateway
//	KM24_API_KEY=... vejviser serve --port 8080
//
//	# Force a catalog re-fetch, or drop the cache entirely
//	vejviser refresh
//	vejviser clear-cache
//
// Configuration comes from flags first, then environment variables:
// KM24_BASE_URL, KM24_API_KEY, VEJVISER_CACHE_DIR, VEJVISER_TABLES_FILE,
// VEJVISER_PORT.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
