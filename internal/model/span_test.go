// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSpan(spanID string, parent *SpanID, startNanos, endNanos int64) *Span {
	return &Span{
		TraceID:      TraceID("0102030405060708090a0b0c0d0e0f10"),
		SpanID:       SpanID(spanID),
		ParentSpanID: parent,
		Name:         "span-" + spanID,
		Kind:         SpanKindServer,
		StartTime:    TimeFromUnixNano(startNanos),
		EndTime:      TimeFromUnixNano(endNanos),
	}
}

func TestSummarizeTrace(t *testing.T) {
	parent := SpanID("aaaaaaaaaaaaaaaa")

	t.Run("empty set", func(t *testing.T) {
		assert.Nil(t, SummarizeTrace("abcd", nil))
	})

	t.Run("single root", func(t *testing.T) {
		root := makeSpan("aaaaaaaaaaaaaaaa", nil, 100, 400)
		child := makeSpan("bbbbbbbbbbbbbbbb", &parent, 150, 300)
		summary := SummarizeTrace(root.TraceID, []*Span{child, root})
		require.NotNil(t, summary)
		assert.Equal(t, root.Name, summary.RootSpanName)
		assert.Equal(t, TimeFromUnixNano(100), summary.StartTime)
		assert.Equal(t, TimeFromUnixNano(400), summary.EndTime)
		assert.Equal(t, 2, summary.NumSpans)
	})

	t.Run("multiple roots picks earliest", func(t *testing.T) {
		late := makeSpan("cccccccccccccccc", nil, 200, 250)
		early := makeSpan("dddddddddddddddd", nil, 50, 75)
		summary := SummarizeTrace(late.TraceID, []*Span{late, early})
		require.NotNil(t, summary)
		assert.Equal(t, early.Name, summary.RootSpanName)
	})

	t.Run("no root falls back to earliest span", func(t *testing.T) {
		a := makeSpan("eeeeeeeeeeeeeeee", &parent, 300, 500)
		b := makeSpan("ffffffffffffffff", &parent, 100, 200)
		summary := SummarizeTrace(a.TraceID, []*Span{a, b})
		require.NotNil(t, summary)
		assert.Equal(t, b.Name, summary.RootSpanName)
		assert.Equal(t, TimeFromUnixNano(100), summary.StartTime)
		assert.Equal(t, TimeFromUnixNano(500), summary.EndTime)
	})
}

func TestSpanFailed(t *testing.T) {
	span := makeSpan("aaaaaaaaaaaaaaaa", nil, 1, 2)
	assert.False(t, span.Failed(), "missing status is a success")

	span.Status = &SpanStatus{Code: StatusCodeOk}
	assert.False(t, span.Failed())

	span.Status = &SpanStatus{Code: StatusCodeUnset}
	assert.False(t, span.Failed())

	span.Status = &SpanStatus{Code: StatusCodeError, Message: "boom"}
	assert.True(t, span.Failed())
}

func TestSpanJSONRoundTrip(t *testing.T) {
	parent := SpanID("1111111111111111")
	scopeName := "test-scope"
	span := makeSpan("aabbccddeeff0011", &parent, 1_700_000_000_000_000_000, 1_700_000_001_000_000_000)
	span.TraceState = "vendor=1"
	span.Flags = 1
	span.ScopeName = &scopeName
	span.Attributes = AttributeMap{
		"http.method": StringAttribute("GET"),
		"retries":     IntAttribute(0),
		"nothing":     nil,
	}
	span.ResourceAttributes = AttributeMap{"service.name": StringAttribute("test")}
	span.Status = &SpanStatus{Code: StatusCodeError, Message: "bad"}
	span.Events = []SpanEvent{{
		Name:       "exception",
		Timestamp:  TimeFromUnixNano(1_700_000_000_500_000_000),
		Attributes: AttributeMap{"exception.type": StringAttribute("io")},
	}}
	span.Links = []SpanLink{{
		TraceID: "202122232425262728292a2b2c2d2e2f",
		SpanID:  "3031323334353637",
	}}

	out, err := json.Marshal(span)
	require.NoError(t, err)

	var decoded Span
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, *span, decoded)
}
