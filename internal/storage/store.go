// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fpx-io/fpx/internal/model"
)

var (
	// ErrSpanNotFound is returned when no span matches the requested
	// (trace id, span id) pair.
	ErrSpanNotFound = errors.New("span not found")
	// ErrAlreadyExists is returned on a primary key collision during
	// SpanCreate. Ingestion treats it as idempotent success.
	ErrAlreadyExists = errors.New("span already exists")
)

// Store is the only component touching durable state. Implementations must
// be safe for concurrent use; each transaction is used by one goroutine.
type Store interface {
	// BeginRO starts a read-only transaction observing a consistent
	// snapshot.
	BeginRO(ctx context.Context) (ReadTx, error)
	// BeginRW starts a read-write transaction. It must be explicitly
	// committed; rolling back (typically via defer) without a commit
	// discards all writes.
	BeginRW(ctx context.Context) (WriteTx, error)
	Close() error
}

// ReadTx is the read-only query surface over spans.
type ReadTx interface {
	// Rollback ends the transaction. Calling it after Commit is a no-op.
	Rollback() error

	// SpanGet returns the span with the given ids, or ErrSpanNotFound.
	SpanGet(ctx context.Context, traceID model.TraceID, spanID model.SpanID) (*model.Span, error)
	// SpanListByTrace returns the trace's spans in insertion order.
	SpanListByTrace(ctx context.Context, traceID model.TraceID) ([]*model.Span, error)
	// TraceList returns up to limit trace heads ordered by latest span end
	// time descending, ties broken by trace id ascending.
	TraceList(ctx context.Context, limit int) ([]TraceHead, error)
	// SpanListSince returns all spans with start_time >= newerThan, in no
	// particular order.
	SpanListSince(ctx context.Context, newerThan time.Time) ([]*model.Span, error)
}

// WriteTx extends ReadTx with mutations.
type WriteTx interface {
	ReadTx
	Commit() error

	// SpanCreate inserts one span and returns the stored row.
	SpanCreate(ctx context.Context, span *model.Span) (*model.Span, error)
	// SpanDelete removes one span, returning the number of affected rows
	// (0 or 1).
	SpanDelete(ctx context.Context, traceID model.TraceID, spanID model.SpanID) (int64, error)
	// SpanDeleteByTrace removes every span of a trace, returning the number
	// of affected rows.
	SpanDeleteByTrace(ctx context.Context, traceID model.TraceID) (int64, error)
}

// TraceHead identifies a trace and the end time of its latest span, the
// ordering key for trace listings.
type TraceHead struct {
	TraceID model.TraceID
	EndTime model.Time
}
