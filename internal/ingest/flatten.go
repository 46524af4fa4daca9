// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"
	"math"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/fpx-io/fpx/internal/model"
)

// SpansFromTraces flattens the OTLP resource/scope/span tree into rows.
// Resource and scope attributes are denormalized onto every span so that a
// stored span is self-contained.
func SpansFromTraces(td ptrace.Traces) ([]*model.Span, error) {
	var spans []*model.Span
	resourceSpans := td.ResourceSpans()
	for i := 0; i < resourceSpans.Len(); i++ {
		rs := resourceSpans.At(i)
		resourceAttrs := attributeMapFromPcommon(rs.Resource().Attributes())
		scopeSpans := rs.ScopeSpans()
		for j := 0; j < scopeSpans.Len(); j++ {
			ss := scopeSpans.At(j)
			scope := ss.Scope()
			scopeName := optionalString(scope.Name())
			scopeVersion := optionalString(scope.Version())
			scopeAttrs := attributeMapFromPcommon(scope.Attributes())
			otlpSpans := ss.Spans()
			for k := 0; k < otlpSpans.Len(); k++ {
				span, err := spanFromOTLP(otlpSpans.At(k))
				if err != nil {
					return nil, err
				}
				span.ScopeName = scopeName
				span.ScopeVersion = scopeVersion
				span.ScopeAttributes = scopeAttrs
				span.ResourceAttributes = resourceAttrs
				spans = append(spans, span)
			}
		}
	}
	return spans, nil
}

func spanFromOTLP(p ptrace.Span) (*model.Span, error) {
	startTime, err := timeFromOTLP(p.StartTimestamp())
	if err != nil {
		return nil, fmt.Errorf("span start time: %w", err)
	}
	endTime, err := timeFromOTLP(p.EndTimestamp())
	if err != nil {
		return nil, fmt.Errorf("span end time: %w", err)
	}
	if endTime.Before(startTime.Time) {
		return nil, fmt.Errorf("span %q ends %d before it starts %d",
			p.Name(), p.EndTimestamp(), p.StartTimestamp())
	}

	traceID := p.TraceID()
	spanID := p.SpanID()
	span := &model.Span{
		TraceID:    model.TraceIDFromBytes(traceID[:]),
		SpanID:     model.SpanIDFromBytes(spanID[:]),
		Name:       p.Name(),
		TraceState: p.TraceState().AsRaw(),
		Flags:      p.Flags(),
		Kind:       spanKindFromOTLP(p.Kind()),
		StartTime:  startTime,
		EndTime:    endTime,
		Attributes: attributeMapFromPcommon(p.Attributes()),
	}
	if parent := p.ParentSpanID(); !parent.IsEmpty() {
		parentID := model.SpanIDFromBytes(parent[:])
		span.ParentSpanID = &parentID
	}

	if status := p.Status(); status.Code() != ptrace.StatusCodeUnset || status.Message() != "" {
		span.Status = &model.SpanStatus{
			Code:    statusCodeFromOTLP(status.Code()),
			Message: status.Message(),
		}
	}

	events := p.Events()
	for i := 0; i < events.Len(); i++ {
		event := events.At(i)
		ts, err := timeFromOTLP(event.Timestamp())
		if err != nil {
			return nil, fmt.Errorf("event %q timestamp: %w", event.Name(), err)
		}
		span.Events = append(span.Events, model.SpanEvent{
			Name:       event.Name(),
			Timestamp:  ts,
			Attributes: attributeMapFromPcommon(event.Attributes()),
		})
	}

	links := p.Links()
	for i := 0; i < links.Len(); i++ {
		link := links.At(i)
		linkTraceID := link.TraceID()
		linkSpanID := link.SpanID()
		span.Links = append(span.Links, model.SpanLink{
			TraceID:    model.TraceIDFromBytes(linkTraceID[:]),
			SpanID:     model.SpanIDFromBytes(linkSpanID[:]),
			TraceState: link.TraceState().AsRaw(),
			Attributes: attributeMapFromPcommon(link.Attributes()),
			Flags:      link.Flags(),
		})
	}

	return span, nil
}

// timeFromOTLP converts unsigned OTLP nanoseconds. Overflowing int64 is not
// client-actionable and surfaces as a server error.
func timeFromOTLP(ts pcommon.Timestamp) (model.Time, error) {
	if uint64(ts) > math.MaxInt64 {
		return model.Time{}, fmt.Errorf("timestamp %d overflows nanosecond range", uint64(ts))
	}
	return model.TimeFromUnixNano(int64(ts)), nil
}

func spanKindFromOTLP(kind ptrace.SpanKind) model.SpanKind {
	switch kind {
	case ptrace.SpanKindInternal:
		return model.SpanKindInternal
	case ptrace.SpanKindServer:
		return model.SpanKindServer
	case ptrace.SpanKindClient:
		return model.SpanKindClient
	case ptrace.SpanKindProducer:
		return model.SpanKindProducer
	case ptrace.SpanKindConsumer:
		return model.SpanKindConsumer
	default:
		return model.SpanKindUnspecified
	}
}

func statusCodeFromOTLP(code ptrace.StatusCode) model.StatusCode {
	switch code {
	case ptrace.StatusCodeOk:
		return model.StatusCodeOk
	case ptrace.StatusCodeError:
		return model.StatusCodeError
	default:
		return model.StatusCodeUnset
	}
}

func attributeMapFromPcommon(attrs pcommon.Map) model.AttributeMap {
	if attrs.Len() == 0 {
		return nil
	}
	out := make(model.AttributeMap, attrs.Len())
	attrs.Range(func(k string, v pcommon.Value) bool {
		out[k] = attributeValueFromPcommon(v)
		return true
	})
	return out
}

func attributeValueFromPcommon(v pcommon.Value) *model.AttributeValue {
	switch v.Type() {
	case pcommon.ValueTypeStr:
		return model.StringAttribute(v.Str())
	case pcommon.ValueTypeBool:
		return model.BoolAttribute(v.Bool())
	case pcommon.ValueTypeInt:
		return model.IntAttribute(v.Int())
	case pcommon.ValueTypeDouble:
		return model.DoubleAttribute(v.Double())
	case pcommon.ValueTypeBytes:
		return model.BytesAttribute(v.Bytes().AsRaw())
	case pcommon.ValueTypeSlice:
		slice := v.Slice()
		values := make([]*model.AttributeValue, 0, slice.Len())
		for i := 0; i < slice.Len(); i++ {
			values = append(values, attributeValueFromPcommon(slice.At(i)))
		}
		return model.ArrayAttribute(values...)
	case pcommon.ValueTypeMap:
		kvs := make(model.AttributeMap, v.Map().Len())
		v.Map().Range(func(k string, inner pcommon.Value) bool {
			kvs[k] = attributeValueFromPcommon(inner)
			return true
		})
		return model.KvListAttribute(kvs)
	default:
		// ValueTypeEmpty: a present key with a null value.
		return nil
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
