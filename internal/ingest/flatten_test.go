// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/fpx-io/fpx/internal/model"
)

var (
	testTraceID = pcommon.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	testSpanID  = pcommon.SpanID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x08}
)

func makeTraces() ptrace.Traces {
	td := ptrace.NewTraces()
	rs := td.ResourceSpans().AppendEmpty()
	rs.Resource().Attributes().PutStr("service.name", "test-service")
	ss := rs.ScopeSpans().AppendEmpty()
	ss.Scope().SetName("test-scope")
	ss.Scope().SetVersion("1.2.3")

	span := ss.Spans().AppendEmpty()
	span.SetTraceID(testTraceID)
	span.SetSpanID(testSpanID)
	span.SetName("GET /items")
	span.SetKind(ptrace.SpanKindServer)
	span.SetStartTimestamp(pcommon.Timestamp(1_700_000_000_000_000_000))
	span.SetEndTimestamp(pcommon.Timestamp(1_700_000_001_000_000_000))
	span.Attributes().PutStr("http.method", "GET")
	span.Attributes().PutInt("http.status_code", 200)
	span.Attributes().PutBool("cache.hit", false)
	return td
}

func TestSpansFromTraces(t *testing.T) {
	spans, err := SpansFromTraces(makeTraces())
	require.NoError(t, err)
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, model.TraceID("0102030405060708090a0b0c0d0e0f10"), span.TraceID)
	assert.Equal(t, model.SpanID("aabbccddeeff0008"), span.SpanID)
	assert.Nil(t, span.ParentSpanID, "empty parent span id must flatten to absent")
	assert.Equal(t, "GET /items", span.Name)
	assert.Equal(t, model.SpanKindServer, span.Kind)
	assert.Equal(t, model.TimeFromUnixNano(1_700_000_000_000_000_000), span.StartTime)
	assert.Equal(t, model.TimeFromUnixNano(1_700_000_001_000_000_000), span.EndTime)
	assert.Nil(t, span.Status, "unset status with empty message must flatten to absent")

	require.NotNil(t, span.ScopeName)
	assert.Equal(t, "test-scope", *span.ScopeName)
	require.NotNil(t, span.ScopeVersion)
	assert.Equal(t, "1.2.3", *span.ScopeVersion)

	assert.Equal(t, model.AttributeMap{
		"http.method":      model.StringAttribute("GET"),
		"http.status_code": model.IntAttribute(200),
		"cache.hit":        model.BoolAttribute(false),
	}, span.Attributes)
	assert.Equal(t, model.AttributeMap{
		"service.name": model.StringAttribute("test-service"),
	}, span.ResourceAttributes)
}

func TestSpansFromTracesParentAndStatus(t *testing.T) {
	td := makeTraces()
	span := td.ResourceSpans().At(0).ScopeSpans().At(0).Spans().At(0)
	span.SetParentSpanID(pcommon.SpanID{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11})
	span.Status().SetCode(ptrace.StatusCodeError)
	span.Status().SetMessage("boom")

	spans, err := SpansFromTraces(td)
	require.NoError(t, err)
	require.Len(t, spans, 1)

	require.NotNil(t, spans[0].ParentSpanID)
	assert.Equal(t, model.SpanID("1111111111111111"), *spans[0].ParentSpanID)
	require.NotNil(t, spans[0].Status)
	assert.Equal(t, model.StatusCodeError, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Message)
	assert.True(t, spans[0].Failed())
}

func TestSpansFromTracesEventsAndLinks(t *testing.T) {
	td := makeTraces()
	span := td.ResourceSpans().At(0).ScopeSpans().At(0).Spans().At(0)

	event := span.Events().AppendEmpty()
	event.SetName("exception")
	event.SetTimestamp(pcommon.Timestamp(1_700_000_000_500_000_000))
	event.Attributes().PutStr("exception.type", "io")

	link := span.Links().AppendEmpty()
	link.SetTraceID(pcommon.TraceID{0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f})
	link.SetSpanID(pcommon.SpanID{0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37})

	spans, err := SpansFromTraces(td)
	require.NoError(t, err)
	require.Len(t, spans, 1)

	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Equal(t, model.TimeFromUnixNano(1_700_000_000_500_000_000), spans[0].Events[0].Timestamp)

	require.Len(t, spans[0].Links, 1)
	assert.Equal(t, model.TraceID("202122232425262728292a2b2c2d2e2f"), spans[0].Links[0].TraceID)
	assert.Equal(t, model.SpanID("3031323334353637"), spans[0].Links[0].SpanID)
}

func TestSpansFromTracesNestedAttributes(t *testing.T) {
	td := makeTraces()
	span := td.ResourceSpans().At(0).ScopeSpans().At(0).Spans().At(0)
	slice := span.Attributes().PutEmptySlice("tags")
	slice.AppendEmpty().SetStr("a")
	slice.AppendEmpty().SetInt(1)
	inner := span.Attributes().PutEmptyMap("nested")
	inner.PutDouble("ratio", 0.5)
	span.Attributes().PutEmpty("absent")

	spans, err := SpansFromTraces(td)
	require.NoError(t, err)
	attrs := spans[0].Attributes

	assert.Equal(t, model.ArrayAttribute(model.StringAttribute("a"), model.IntAttribute(1)), attrs["tags"])
	assert.Equal(t, model.KvListAttribute(model.AttributeMap{
		"ratio": model.DoubleAttribute(0.5),
	}), attrs["nested"])

	value, ok := attrs["absent"]
	assert.True(t, ok, "empty value key must be present")
	assert.Nil(t, value)
}

func TestSpansFromTracesEndBeforeStart(t *testing.T) {
	td := makeTraces()
	span := td.ResourceSpans().At(0).ScopeSpans().At(0).Spans().At(0)
	span.SetStartTimestamp(pcommon.Timestamp(1_700_000_001_000_000_000))
	span.SetEndTimestamp(pcommon.Timestamp(1_700_000_000_000_000_000))

	_, err := SpansFromTraces(td)
	assert.ErrorContains(t, err, "before it starts")
}

func TestSpansFromTracesTimestampOverflow(t *testing.T) {
	td := makeTraces()
	span := td.ResourceSpans().At(0).ScopeSpans().At(0).Spans().At(0)
	span.SetStartTimestamp(pcommon.Timestamp(^uint64(0)))

	_, err := SpansFromTraces(td)
	assert.ErrorContains(t, err, "overflows")
}

func TestSpansFromTracesMultipleResources(t *testing.T) {
	td := makeTraces()
	rs := td.ResourceSpans().AppendEmpty()
	ss := rs.ScopeSpans().AppendEmpty()
	span := ss.Spans().AppendEmpty()
	span.SetTraceID(testTraceID)
	span.SetSpanID(pcommon.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	span.SetName("second")

	spans, err := SpansFromTraces(td)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Nil(t, spans[1].ScopeName, "empty scope name must flatten to absent")
	assert.Nil(t, spans[1].ResourceAttributes)
	assert.Equal(t, model.SpanKindUnspecified, spans[1].Kind)
}
