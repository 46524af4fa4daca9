// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/fpx-io/fpx/internal/model"
	"github.com/fpx-io/fpx/internal/storage"
)

type readTx struct {
	tx   *sql.Tx
	done bool
}

type writeTx struct {
	readTx
}

var (
	_ storage.ReadTx  = (*readTx)(nil)
	_ storage.WriteTx = (*writeTx)(nil)
)

func (t *readTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

func (t *writeTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *readTx) SpanGet(ctx context.Context, traceID model.TraceID, spanID model.SpanID) (*model.Span, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT inner FROM spans WHERE trace_id = ? AND span_id = ?`,
		string(traceID), string(spanID))
	var inner string
	if err := row.Scan(&inner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSpanNotFound
		}
		return nil, fmt.Errorf("querying span: %w", err)
	}
	return decodeSpan(inner)
}

func (t *readTx) SpanListByTrace(ctx context.Context, traceID model.TraceID) ([]*model.Span, error) {
	// rowid order is insertion order; no span-tree ordering is implied.
	rows, err := t.tx.QueryContext(ctx,
		`SELECT inner FROM spans WHERE trace_id = ? ORDER BY rowid ASC`,
		string(traceID))
	if err != nil {
		return nil, fmt.Errorf("querying spans by trace: %w", err)
	}
	return scanSpans(rows)
}

func (t *readTx) TraceList(ctx context.Context, limit int) ([]storage.TraceHead, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT trace_id, MAX(end_time) AS end_time
		 FROM spans
		 GROUP BY trace_id
		 ORDER BY end_time DESC, trace_id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var heads []storage.TraceHead
	for rows.Next() {
		var traceID string
		var endTime float64
		if err := rows.Scan(&traceID, &endTime); err != nil {
			return nil, err
		}
		heads = append(heads, storage.TraceHead{
			TraceID: model.TraceID(traceID),
			EndTime: model.TimeFromUnixSeconds(endTime),
		})
	}
	return heads, rows.Err()
}

func (t *readTx) SpanListSince(ctx context.Context, newerThan time.Time) ([]*model.Span, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT inner FROM spans WHERE start_time >= ?`,
		model.NewTime(newerThan).UnixSeconds())
	if err != nil {
		return nil, fmt.Errorf("querying spans by start time: %w", err)
	}
	return scanSpans(rows)
}

func (t *writeTx) SpanCreate(ctx context.Context, span *model.Span) (*model.Span, error) {
	inner, err := json.Marshal(span)
	if err != nil {
		return nil, fmt.Errorf("serializing span: %w", err)
	}
	var parent any
	if span.ParentSpanID != nil {
		parent = string(*span.ParentSpanID)
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO spans (trace_id, span_id, parent_span_id, name, kind, start_time, end_time, inner)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(span.TraceID), string(span.SpanID), parent, span.Name, string(span.Kind),
		span.StartTime.UnixSeconds(), span.EndTime.UnixSeconds(), string(inner))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return nil, storage.ErrAlreadyExists
		}
		return nil, fmt.Errorf("inserting span: %w", err)
	}
	return decodeSpan(string(inner))
}

func (t *writeTx) SpanDelete(ctx context.Context, traceID model.TraceID, spanID model.SpanID) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM spans WHERE trace_id = ? AND span_id = ?`,
		string(traceID), string(spanID))
	if err != nil {
		return 0, fmt.Errorf("deleting span: %w", err)
	}
	return res.RowsAffected()
}

func (t *writeTx) SpanDeleteByTrace(ctx context.Context, traceID model.TraceID) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM spans WHERE trace_id = ?`, string(traceID))
	if err != nil {
		return 0, fmt.Errorf("deleting trace spans: %w", err)
	}
	return res.RowsAffected()
}

func scanSpans(rows *sql.Rows) ([]*model.Span, error) {
	defer rows.Close()
	var spans []*model.Span
	for rows.Next() {
		var inner string
		if err := rows.Scan(&inner); err != nil {
			return nil, err
		}
		span, err := decodeSpan(inner)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

func decodeSpan(inner string) (*model.Span, error) {
	var span model.Span
	if err := json.Unmarshal([]byte(inner), &span); err != nil {
		return nil, fmt.Errorf("deserializing span: %w", err)
	}
	return &span, nil
}
