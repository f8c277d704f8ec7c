// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconvault_controller_tasks_total",
			Help: "Provider mutation tasks executed, by task name and status.",
		},
		[]string{"task", "status"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iconvault_controller_task_duration_seconds",
			Help:    "Execution time of provider mutation tasks.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iconvault_controller_queue_depth",
			Help: "Number of tasks waiting in the mutation queue.",
		},
	)

	activeProviders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iconvault_controller_active_providers",
			Help: "Number of icon providers currently registered and serving.",
		},
	)
)
