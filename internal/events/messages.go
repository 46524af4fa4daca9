// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"github.com/fpx-io/fpx/internal/model"
)

// MessageType tags the ServerMessage union. The field is deliberately an
// open string so clients tolerate variants added later.
type MessageType string

const (
	MessageTypeAck       MessageType = "ack"
	MessageTypeError     MessageType = "error"
	MessageTypeSpanAdded MessageType = "spanAdded"
)

// ErrorInvalidMessage is the in-band error code for an inbound frame that
// could not be parsed as a ClientMessage.
const ErrorInvalidMessage = "invalidMessage"

// ServerMessage is the server-to-client envelope. MessageID is set on
// request-scoped replies (ack, error) and absent on broadcast messages.
type ServerMessage struct {
	MessageID *string     `json:"messageId,omitempty"`
	Type      MessageType `json:"type"`

	// Error carries the error code for MessageTypeError.
	Error string `json:"error,omitempty"`
	// NewSpans carries [traceId, spanId] pairs for MessageTypeSpanAdded.
	NewSpans [][2]string `json:"newSpans,omitempty"`
}

// ClientMessage is the client-to-server envelope. Every message is answered
// with an ack carrying the same message id.
type ClientMessage struct {
	MessageID string `json:"messageId"`
}

// NewAckMessage acknowledges the client message with the given id.
func NewAckMessage(messageID string) ServerMessage {
	return ServerMessage{MessageID: &messageID, Type: MessageTypeAck}
}

// NewErrorMessage reports an in-band error. messageID may be nil when the
// offending frame could not be parsed at all.
func NewErrorMessage(messageID *string, code string) ServerMessage {
	return ServerMessage{MessageID: messageID, Type: MessageTypeError, Error: code}
}

// NewSpanAddedMessage announces that a span has been committed to storage.
func NewSpanAddedMessage(traceID model.TraceID, spanID model.SpanID) ServerMessage {
	return ServerMessage{
		Type:     MessageTypeSpanAdded,
		NewSpans: [][2]string{{string(traceID), string(spanID)}},
	}
}
