// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

// Package recoveryhandler adapts a zap logger to the gorilla recovery
// middleware so a panicking request handler is logged instead of crashing
// the process.
package recoveryhandler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type zapRecoveryWrapper struct {
	logger *zap.Logger
}

func (z zapRecoveryWrapper) Println(args ...any) {
	z.logger.Error(fmt.Sprint(args...))
}

// NewRecoveryHandler returns an http.Handler wrapper that recovers from
// panics.
func NewRecoveryHandler(logger *zap.Logger, printStack bool) func(h http.Handler) http.Handler {
	wrapper := zapRecoveryWrapper{logger}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(wrapper),
		handlers.PrintRecoveryStack(printStack),
	)
}
