// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/hex"
	"errors"
)

var (
	// ErrInvalidTraceID is returned when a trace id is not a well-formed
	// lowercase hex string. Distinct from "trace not found".
	ErrInvalidTraceID = errors.New("invalid trace id")
	// ErrInvalidSpanID is returned when a span id is not a well-formed
	// lowercase hex string. Distinct from "span not found".
	ErrInvalidSpanID = errors.New("invalid span id")
)

// TraceID is a hex-encoded trace identifier.
type TraceID string

// SpanID is a hex-encoded span identifier.
type SpanID string

// ParseTraceID validates a hex string and returns it as a TraceID.
func ParseTraceID(s string) (TraceID, error) {
	if !validHexID(s) {
		return "", ErrInvalidTraceID
	}
	return TraceID(s), nil
}

// ParseSpanID validates a hex string and returns it as a SpanID.
func ParseSpanID(s string) (SpanID, error) {
	if !validHexID(s) {
		return "", ErrInvalidSpanID
	}
	return SpanID(s), nil
}

// TraceIDFromBytes encodes raw trace id bytes as lowercase hex.
func TraceIDFromBytes(b []byte) TraceID {
	return TraceID(hex.EncodeToString(b))
}

// SpanIDFromBytes encodes raw span id bytes as lowercase hex.
func SpanIDFromBytes(b []byte) SpanID {
	return SpanID(hex.EncodeToString(b))
}

func (t TraceID) String() string { return string(t) }

func (s SpanID) String() string { return string(s) }

func validHexID(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
