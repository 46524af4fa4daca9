// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package model

// Span is the atomic unit of storage. It is produced by flattening an OTLP
// export and round-trips losslessly through its JSON encoding.
type Span struct {
	TraceID            TraceID      `json:"traceId"`
	SpanID             SpanID       `json:"spanId"`
	ParentSpanID       *SpanID      `json:"parentSpanId,omitempty"`
	Name               string       `json:"name"`
	TraceState         string       `json:"traceState,omitempty"`
	Flags              uint32       `json:"flags,omitempty"`
	Kind               SpanKind     `json:"kind"`
	ScopeName          *string      `json:"scopeName,omitempty"`
	ScopeVersion       *string      `json:"scopeVersion,omitempty"`
	StartTime          Time         `json:"startTime"`
	EndTime            Time         `json:"endTime"`
	Attributes         AttributeMap `json:"attributes"`
	ScopeAttributes    AttributeMap `json:"scopeAttributes,omitempty"`
	ResourceAttributes AttributeMap `json:"resourceAttributes,omitempty"`
	Status             *SpanStatus  `json:"status,omitempty"`
	Events             []SpanEvent  `json:"events,omitempty"`
	Links              []SpanLink   `json:"links,omitempty"`
}

// SpanStatus is the OTLP span status. A nil *SpanStatus means Unset.
type SpanStatus struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// SpanEvent is a timestamped annotation on a span. Order is preserved.
type SpanEvent struct {
	Name       string       `json:"name"`
	Timestamp  Time         `json:"timestamp"`
	Attributes AttributeMap `json:"attributes"`
}

// SpanLink references a span in this or another trace. Order is preserved.
type SpanLink struct {
	TraceID    TraceID      `json:"traceId"`
	SpanID     SpanID       `json:"spanId"`
	TraceState string       `json:"traceState,omitempty"`
	Attributes AttributeMap `json:"attributes"`
	Flags      uint32       `json:"flags,omitempty"`
}

// Failed reports whether the span counts as a failed request: only an
// explicit Error status does, Unset and Ok do not.
func (s *Span) Failed() bool {
	return s.Status != nil && s.Status.Code == StatusCodeError
}

// TraceSummary describes a trace, which is a computed entity: the set of
// spans sharing a trace id.
type TraceSummary struct {
	TraceID      TraceID `json:"traceId"`
	RootSpanName string  `json:"rootSpanName,omitempty"`
	StartTime    Time    `json:"startTime"`
	EndTime      Time    `json:"endTime"`
	NumSpans     int     `json:"numSpans"`
}

// SummarizeTrace derives a trace summary from the trace's spans. The root is
// the span without a parent; with multiple candidates the one with the
// earliest start time wins, and when no span is parentless the earliest
// starting span stands in. Returns nil for an empty span set.
func SummarizeTrace(traceID TraceID, spans []*Span) *TraceSummary {
	if len(spans) == 0 {
		return nil
	}
	summary := &TraceSummary{
		TraceID:   traceID,
		StartTime: spans[0].StartTime,
		EndTime:   spans[0].EndTime,
		NumSpans:  len(spans),
	}
	var root *Span
	for _, span := range spans {
		if span.StartTime.Before(summary.StartTime.Time) {
			summary.StartTime = span.StartTime
		}
		if span.EndTime.After(summary.EndTime.Time) {
			summary.EndTime = span.EndTime
		}
		if span.ParentSpanID != nil {
			continue
		}
		if root == nil || span.StartTime.Before(root.StartTime.Time) {
			root = span
		}
	}
	if root == nil {
		for _, span := range spans {
			if root == nil || span.StartTime.Before(root.StartTime.Time) {
				root = span
			}
		}
	}
	summary.RootSpanName = root.Name
	return summary
}
