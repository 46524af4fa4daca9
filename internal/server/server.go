// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fpx-io/fpx/internal/events"
	"github.com/fpx-io/fpx/internal/ingest"
	"github.com/fpx-io/fpx/internal/recoveryhandler"
	"github.com/fpx-io/fpx/internal/storage"
)

const (
	// DefaultHTTPHostPort is the default HTTP listen address.
	DefaultHTTPHostPort = "127.0.0.1:6767"
	// DefaultGRPCHostPort is the default gRPC listen address.
	DefaultGRPCHostPort = "127.0.0.1:4567"
)

// Options configures the listen addresses of both servers.
type Options struct {
	HTTPHostPort string
	GRPCHostPort string
}

// Server runs the HTTP and gRPC listeners sharing one ingestor, store and
// bus.
type Server struct {
	opts   Options
	bus    *events.Bus
	logger *zap.Logger

	httpServer *http.Server
	grpcServer *grpc.Server

	// Set by Start to the actual bound addresses, for tests binding port 0.
	HTTPAddr string
	GRPCAddr string
}

func NewServer(opts Options, store storage.Store, ingestor *ingest.Ingestor, bus *events.Bus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HTTPHostPort == "" {
		opts.HTTPHostPort = DefaultHTTPHostPort
	}
	if opts.GRPCHostPort == "" {
		opts.GRPCHostPort = DefaultGRPCHostPort
	}

	apiHandler := NewAPIHandler(store, ingestor, bus, logger)
	router := mux.NewRouter()
	apiHandler.RegisterRoutes(router)

	recovery := recoveryhandler.NewRecoveryHandler(logger, true)
	httpServer := &http.Server{
		Handler:           recovery(handlers.CompressHandler(router)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	ptraceotlp.RegisterGRPCServer(grpcServer, NewGRPCHandler(ingestor, logger))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(
		"opentelemetry.proto.collector.trace.v1.TraceService",
		grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	return &Server{
		opts:       opts,
		bus:        bus,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}
}

// Start binds both listeners and serves in background goroutines.
func (s *Server) Start() error {
	httpListener, err := net.Listen("tcp", s.opts.HTTPHostPort)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP port: %w", err)
	}
	grpcListener, err := net.Listen("tcp", s.opts.GRPCHostPort)
	if err != nil {
		httpListener.Close()
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	s.HTTPAddr = httpListener.Addr().String()
	s.GRPCAddr = grpcListener.Addr().String()

	s.logger.Info("Starting HTTP server", zap.String("http.host-port", s.HTTPAddr))
	go func() {
		if err := s.httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Starting gRPC server", zap.String("grpc.host-port", s.GRPCAddr))
	go func() {
		if err := s.grpcServer.Serve(grpcListener); err != nil {
			s.logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests
// up to the context deadline. Closing the bus first lets WebSocket sessions
// drain and terminate promptly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bus.Close()

	err := s.httpServer.Shutdown(ctx)

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	return err
}
