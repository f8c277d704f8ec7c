// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iconvault_store_operations_total",
		Help: "Total asset store operations by operation and status",
	}, []string{"operation", "status"})

	// Bounded cardinality: the provider set is closed and compiled in.
	storeRecordBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "iconvault_store_record_bytes",
		Help: "Encoded size of the stored asset record per provider",
	}, []string{"provider"})
)
