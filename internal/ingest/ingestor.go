// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

// Package ingest accepts OTLP trace exports, persists the flattened spans
// and notifies subscribers about every newly stored span.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.uber.org/zap"

	"github.com/fpx-io/fpx/internal/events"
	"github.com/fpx-io/fpx/internal/storage"
)

// Ingestor writes one OTLP export in a single transaction. Duplicate spans
// are skipped silently: at-least-once delivery by exporters makes re-sends
// normal. SpanAdded notifications are published only after the commit, so a
// subscriber that observes one is guaranteed to find the span on read.
type Ingestor struct {
	store  storage.Store
	bus    *events.Bus
	logger *zap.Logger
}

func NewIngestor(store storage.Store, bus *events.Bus, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: store, bus: bus, logger: logger}
}

// Export implements the OTLP trace export semantics shared by the HTTP and
// gRPC receivers. Any error other than a duplicate fails the whole export
// with nothing persisted.
func (i *Ingestor) Export(ctx context.Context, req ptraceotlp.ExportRequest) (ptraceotlp.ExportResponse, error) {
	spans, err := SpansFromTraces(req.Traces())
	if err != nil {
		spansRejected.Inc()
		return ptraceotlp.NewExportResponse(), fmt.Errorf("flattening export: %w", err)
	}
	spansReceived.Add(float64(len(spans)))

	tx, err := i.store.BeginRW(ctx)
	if err != nil {
		return ptraceotlp.NewExportResponse(), fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := spans[:0]
	for _, span := range spans {
		if _, err := tx.SpanCreate(ctx, span); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				spansDuplicate.Inc()
				i.logger.Debug("Skipping duplicate span",
					zap.String("trace_id", span.TraceID.String()),
					zap.String("span_id", span.SpanID.String()))
				continue
			}
			return ptraceotlp.NewExportResponse(), fmt.Errorf("storing span: %w", err)
		}
		inserted = append(inserted, span)
	}

	if err := tx.Commit(); err != nil {
		return ptraceotlp.NewExportResponse(), fmt.Errorf("committing export: %w", err)
	}
	spansInserted.Add(float64(len(inserted)))

	for _, span := range inserted {
		i.bus.Publish(events.NewSpanAddedMessage(span.TraceID, span.SpanID))
	}

	return ptraceotlp.NewExportResponse(), nil
}
