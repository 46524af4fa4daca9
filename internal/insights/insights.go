// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

// Package insights buckets request activity over a time window.
package insights

import (
	"time"

	"github.com/fpx-io/fpx/internal/model"
)

// DataPoint is one bucket of the overview.
type DataPoint struct {
	Timestamp      model.Time `json:"timestamp"`
	TotalRequests  uint64     `json:"totalRequests"`
	FailedRequests uint64     `json:"failedRequests"`
}

// Overview aggregates the bucketed data points.
type Overview struct {
	TotalRequest  uint64      `json:"totalRequest"`
	FailedRequest uint64      `json:"failedRequest"`
	Requests      []DataPoint `json:"requests"`
}

// BucketSpans splits [min, max] into resolution equal-width buckets and
// assigns every span by start time. Bucket i covers [min + i*(max-min)/R,
// min + (i+1)*(max-min)/R), except that a span starting exactly at max lands
// in the last bucket. Spans outside [min, max] are dropped. The result
// always has exactly resolution points, in ascending timestamp order.
func BucketSpans(spans []*model.Span, min, max time.Time, resolution int) []DataPoint {
	minNanos := min.UnixNano()
	maxNanos := max.UnixNano()
	window := maxNanos - minNanos
	if window <= 0 {
		window = 1
	}

	// Boundaries are derived per index so that uneven windows do not
	// accumulate rounding drift into the last bucket.
	points := make([]DataPoint, resolution)
	for i := range points {
		points[i].Timestamp = model.TimeFromUnixNano(minNanos + int64(i)*window/int64(resolution))
	}

	for _, span := range spans {
		t := span.StartTime.UnixNano()
		if t < minNanos || t > maxNanos {
			continue
		}
		idx := int((t - minNanos) * int64(resolution) / window)
		if idx >= resolution {
			idx = resolution - 1
		}
		points[idx].TotalRequests++
		if span.Failed() {
			points[idx].FailedRequests++
		}
	}
	return points
}

// BuildOverview buckets the spans and totals the counts.
func BuildOverview(spans []*model.Span, min, max time.Time, resolution int) Overview {
	points := BucketSpans(spans, min, max, resolution)
	overview := Overview{Requests: points}
	for _, p := range points {
		overview.TotalRequest += p.TotalRequests
		overview.FailedRequest += p.FailedRequests
	}
	return overview
}
