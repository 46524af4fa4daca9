// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"io"
	"mime"
	"net/http"

	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.uber.org/zap"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeProto = "application/x-protobuf"
)

// exportTraces handles POST /v1/traces. The response is encoded the same way
// as the request: JSON in, JSON out; protobuf in, protobuf out. Any other
// content type is 415, a payload the decoder rejects is 400, and a storage
// failure is 500.
func (h *APIHandler) exportTraces(w http.ResponseWriter, r *http.Request) {
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (contentType != contentTypeJSON && contentType != contentTypeProto) {
		h.writeError(w, http.StatusUnsupportedMediaType, "unsupportedMediaType")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalidPayload")
		return
	}

	req := ptraceotlp.NewExportRequest()
	if contentType == contentTypeJSON {
		err = req.UnmarshalJSON(body)
	} else {
		err = req.UnmarshalProto(body)
	}
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	resp, err := h.ingestor.Export(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to ingest trace export", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	var respBody []byte
	if contentType == contentTypeJSON {
		respBody, err = resp.MarshalJSON()
	} else {
		respBody, err = resp.MarshalProto()
	}
	if err != nil {
		h.logger.Error("Failed to serialize export response", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(respBody)
}
