// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the HTTP, gRPC and WebSocket surfaces of the
// service.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fpx-io/fpx/internal/events"
	"github.com/fpx-io/fpx/internal/ingest"
	"github.com/fpx-io/fpx/internal/insights"
	"github.com/fpx-io/fpx/internal/model"
	"github.com/fpx-io/fpx/internal/storage"
)

const (
	traceIDParam = "traceID"
	spanIDParam  = "spanID"

	// tracesListLimit caps the trace listing; no pagination is offered.
	tracesListLimit = 20

	// overviewWindow and overviewResolution fix the insights overview to
	// sixty one-minute buckets over the last hour.
	overviewWindow     = time.Hour
	overviewResolution = 60
)

// Error codes returned in the {"error": ...} body.
const (
	errInvalidTraceID = "invalidTraceId"
	errInvalidSpanID  = "invalidSpanId"
	errTraceNotFound  = "traceNotFound"
	errSpanNotFound   = "spanNotFound"
	errInternal       = "internalServerError"
)

type apiError struct {
	Error string `json:"error"`
}

// APIHandler implements the trace/span read and delete API, the insights
// overview, OTLP ingestion over HTTP and the WebSocket endpoint.
type APIHandler struct {
	store    storage.Store
	ingestor *ingest.Ingestor
	bus      *events.Bus
	logger   *zap.Logger
}

func NewAPIHandler(store storage.Store, ingestor *ingest.Ingestor, bus *events.Bus, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{store: store, ingestor: ingestor, bus: bus, logger: logger}
}

// RegisterRoutes registers all HTTP routes on the given router.
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/traces", h.exportTraces).Methods(http.MethodPost)
	router.HandleFunc("/traces", h.listTraces).Methods(http.MethodGet)
	router.HandleFunc("/traces/{"+traceIDParam+"}", h.getTrace).Methods(http.MethodGet)
	router.HandleFunc("/traces/{"+traceIDParam+"}", h.deleteTrace).Methods(http.MethodDelete)
	router.HandleFunc("/traces/{"+traceIDParam+"}/spans", h.listSpans).Methods(http.MethodGet)
	router.HandleFunc("/traces/{"+traceIDParam+"}/spans/{"+spanIDParam+"}", h.getSpan).Methods(http.MethodGet)
	router.HandleFunc("/traces/{"+traceIDParam+"}/spans/{"+spanIDParam+"}", h.deleteSpan).Methods(http.MethodDelete)
	router.HandleFunc("/insights/overview", h.insightsOverview).Methods(http.MethodGet)
	router.HandleFunc("/ws", h.serveWebSocket).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (h *APIHandler) listTraces(w http.ResponseWriter, r *http.Request) {
	tx, err := h.store.BeginRO(r.Context())
	if h.handleStoreError(w, err) {
		return
	}
	defer tx.Rollback()

	heads, err := tx.TraceList(r.Context(), tracesListLimit)
	if h.handleStoreError(w, err) {
		return
	}
	summaries := make([]*model.TraceSummary, 0, len(heads))
	for _, head := range heads {
		spans, err := tx.SpanListByTrace(r.Context(), head.TraceID)
		if h.handleStoreError(w, err) {
			return
		}
		if summary := model.SummarizeTrace(head.TraceID, spans); summary != nil {
			summaries = append(summaries, summary)
		}
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *APIHandler) getTrace(w http.ResponseWriter, r *http.Request) {
	traceID, ok := h.parseTraceID(w, r)
	if !ok {
		return
	}
	tx, err := h.store.BeginRO(r.Context())
	if h.handleStoreError(w, err) {
		return
	}
	defer tx.Rollback()

	spans, err := tx.SpanListByTrace(r.Context(), traceID)
	if h.handleStoreError(w, err) {
		return
	}
	summary := model.SummarizeTrace(traceID, spans)
	if summary == nil {
		h.writeError(w, http.StatusNotFound, errTraceNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) deleteTrace(w http.ResponseWriter, r *http.Request) {
	traceID, ok := h.parseTraceID(w, r)
	if !ok {
		return
	}
	tx, err := h.store.BeginRW(r.Context())
	if h.handleStoreError(w, err) {
		return
	}
	defer tx.Rollback()

	if _, err := tx.SpanDeleteByTrace(r.Context(), traceID); h.handleStoreError(w, err) {
		return
	}
	if h.handleStoreError(w, tx.Commit()) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) listSpans(w http.ResponseWriter, r *http.Request) {
	traceID, ok := h.parseTraceID(w, r)
	if !ok {
		return
	}
	tx, err := h.store.BeginRO(r.Context())
	if h.handleStoreError(w, err) {
		return
	}
	defer tx.Rollback()

	spans, err := tx.SpanListByTrace(r.Context(), traceID)
	if h.handleStoreError(w, err) {
		return
	}
	if spans == nil {
		spans = []*model.Span{}
	}
	h.writeJSON(w, http.StatusOK, spans)
}

func (h *APIHandler) getSpan(w http.ResponseWriter, r *http.Request) {
	traceID, ok := h.parseTraceID(w, r)
	if !ok {
		return
	}
	spanID, ok := h.parseSpanID(w, r)
	if !ok {
		return
	}
	tx, err := h.store.BeginRO(r.Context())
	if h.handleStoreError(w, err) {
		return
	}
	defer tx.Rollback()

	span, err := tx.SpanGet(r.Context(), traceID, spanID)
	if errors.Is(err, storage.ErrSpanNotFound) {
		h.writeError(w, http.StatusNotFound, errSpanNotFound)
		return
	}
	if h.handleStoreError(w, err) {
		return
	}
	h.writeJSON(w, http.StatusOK, span)
}

func (h *APIHandler) deleteSpan(w http.ResponseWriter, r *http.Request) {
	traceID, ok := h.parseTraceID(w, r)
	if !ok {
		return
	}
	spanID, ok := h.parseSpanID(w, r)
	if !ok {
		return
	}
	tx, err := h.store.BeginRW(r.Context())
	if h.handleStoreError(w, err) {
		return
	}
	defer tx.Rollback()

	if _, err := tx.SpanDelete(r.Context(), traceID, spanID); h.handleStoreError(w, err) {
		return
	}
	if h.handleStoreError(w, tx.Commit()) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) insightsOverview(w http.ResponseWriter, r *http.Request) {
	tx, err := h.store.BeginRO(r.Context())
	if h.handleStoreError(w, err) {
		return
	}
	defer tx.Rollback()

	now := time.Now()
	windowStart := now.Add(-overviewWindow)
	spans, err := tx.SpanListSince(r.Context(), windowStart)
	if h.handleStoreError(w, err) {
		return
	}
	overview := insights.BuildOverview(spans, windowStart, now, overviewResolution)
	h.writeJSON(w, http.StatusOK, overview)
}

func (h *APIHandler) parseTraceID(w http.ResponseWriter, r *http.Request) (model.TraceID, bool) {
	traceID, err := model.ParseTraceID(mux.Vars(r)[traceIDParam])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidTraceID)
		return "", false
	}
	return traceID, true
}

func (h *APIHandler) parseSpanID(w http.ResponseWriter, r *http.Request) (model.SpanID, bool) {
	spanID, err := model.ParseSpanID(mux.Vars(r)[spanIDParam])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidSpanID)
		return "", false
	}
	return spanID, true
}

// handleStoreError reports storage failures as opaque 500s. Returns true if
// an error was written.
func (h *APIHandler) handleStoreError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	h.logger.Error("Store operation failed", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, errInternal)
	return true
}

func (h *APIHandler) writeError(w http.ResponseWriter, statusCode int, code string) {
	h.writeJSON(w, statusCode, apiError{Error: code})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, statusCode int, response any) {
	body, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to serialize response", zap.Error(err))
		http.Error(w, `{"error":"`+errInternal+`"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}
