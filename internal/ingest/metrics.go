// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	spansReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fpx",
		Subsystem: "ingest",
		Name:      "spans_received_total",
		Help:      "Number of spans received over all transports.",
	})
	spansInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fpx",
		Subsystem: "ingest",
		Name:      "spans_inserted_total",
		Help:      "Number of spans committed to storage.",
	})
	spansDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fpx",
		Subsystem: "ingest",
		Name:      "spans_duplicate_total",
		Help:      "Number of spans skipped because they were already stored.",
	})
	spansRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fpx",
		Subsystem: "ingest",
		Name:      "spans_rejected_total",
		Help:      "Number of export requests rejected during flattening.",
	})
)
