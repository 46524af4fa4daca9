// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

// Command fpx runs the local trace ingestion and query service: OTLP in over
// HTTP and gRPC, spans out over a JSON API and WebSocket notifications.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fpx-io/fpx/internal/events"
	"github.com/fpx-io/fpx/internal/ingest"
	"github.com/fpx-io/fpx/internal/server"
	"github.com/fpx-io/fpx/internal/storage/sqlite"
)

const (
	flagHTTPHostPort = "http.host-port"
	flagGRPCHostPort = "grpc.host-port"
	flagDBPath       = "storage.db-path"
	flagLogLevel     = "log-level"

	shutdownGracePeriod = 10 * time.Second
)

func main() {
	v := viper.New()

	command := &cobra.Command{
		Use:   "fpx",
		Short: "Local OpenTelemetry trace ingestion and query service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runService(v)
		},
		SilenceUsage: true,
	}

	addFlags(command.Flags())
	v.BindPFlags(command.Flags())
	v.SetEnvPrefix("FPX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addFlags(flags *pflag.FlagSet) {
	flags.String(flagHTTPHostPort, server.DefaultHTTPHostPort, "host:port of the HTTP API")
	flags.String(flagGRPCHostPort, server.DefaultGRPCHostPort, "host:port of the OTLP gRPC service")
	flags.String(flagDBPath, "traces.db", "path of the trace database, or :memory:")
	flags.String(flagLogLevel, "info", "minimal log level (debug, info, warn, error)")
}

func runService(v *viper.Viper) error {
	logger, err := newLogger(v.GetString(flagLogLevel))
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlite.New(v.GetString(flagDBPath), logger)
	if err != nil {
		return fmt.Errorf("cannot initialize storage: %w", err)
	}
	defer store.Close()

	bus := events.NewBus()
	ingestor := ingest.NewIngestor(store, bus, logger)
	srv := server.NewServer(server.Options{
		HTTPHostPort: v.GetString(flagHTTPHostPort),
		GRPCHostPort: v.GetString(flagGRPCHostPort),
	}, store, ingestor, bus, logger)

	if err := srv.Start(); err != nil {
		return err
	}

	signalsChannel := make(chan os.Signal, 1)
	signal.Notify(signalsChannel, os.Interrupt, syscall.SIGTERM)

	<-signalsChannel
	logger.Info("Shutting down")

	// A second signal forces an immediate exit.
	go func() {
		<-signalsChannel
		logger.Warn("Forcing shutdown")
		os.Exit(1)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	return cfg.Build()
}
