// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fpx-io/fpx/internal/ingest"
)

var _ ptraceotlp.GRPCServer = (*GRPCHandler)(nil)

// GRPCHandler serves the OTLP TraceService.Export RPC, delegating to the
// shared ingestor.
type GRPCHandler struct {
	ptraceotlp.UnimplementedGRPCServer

	ingestor *ingest.Ingestor
	logger   *zap.Logger
}

func NewGRPCHandler(ingestor *ingest.Ingestor, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{ingestor: ingestor, logger: logger}
}

func (h *GRPCHandler) Export(ctx context.Context, req ptraceotlp.ExportRequest) (ptraceotlp.ExportResponse, error) {
	resp, err := h.ingestor.Export(ctx, req)
	if err != nil {
		h.logger.Error("Failed to export traces", zap.Error(err))
		// Internal details stay out of the response.
		return resp, status.Error(codes.Internal, "failed to store spans")
	}
	return resp, nil
}
