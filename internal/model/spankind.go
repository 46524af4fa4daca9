// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package model

// SpanKind mirrors the OTLP span kind enum. The zero value is Unspecified.
// JSON serialization uses the PascalCase names.
type SpanKind string

const (
	SpanKindUnspecified SpanKind = "Unspecified"
	SpanKindInternal    SpanKind = "Internal"
	SpanKindServer      SpanKind = "Server"
	SpanKindClient      SpanKind = "Client"
	SpanKindProducer    SpanKind = "Producer"
	SpanKindConsumer    SpanKind = "Consumer"
)

// StatusCode mirrors the OTLP span status code. Absence of a status means
// Unset.
type StatusCode string

const (
	StatusCodeUnset StatusCode = "Unset"
	StatusCodeOk    StatusCode = "Ok"
	StatusCodeError StatusCode = "Error"
)
