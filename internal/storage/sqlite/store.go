// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements the storage contract on SQLite via database/sql.
// The same code path serves a file-backed database (WAL mode) and the
// in-memory database used by tests and ephemeral runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fpx-io/fpx/internal/storage"
)

// InMemory is the database path selecting the in-memory engine.
const InMemory = ":memory:"

var _ storage.Store = (*Store)(nil)

// Store is a SQLite-backed span store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (creating if necessary) the database at path and applies pending
// migrations. Pass InMemory for an ephemeral database.
func New(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := path
	if path == InMemory {
		dsn = "file::memory:"
	} else {
		// WAL keeps readers concurrent with the single writer; the busy
		// timeout covers writer contention between pooled connections.
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == InMemory {
		// The in-memory database lives and dies with its connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	db.SetConnMaxLifetime(0)

	if err := applyMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// BeginRO starts a read-only transaction. SQLite's deferred transactions
// already give readers a consistent snapshot, so no read-only pragma is
// needed.
func (s *Store) BeginRO(ctx context.Context) (storage.ReadTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}
	return &readTx{tx: tx}, nil
}

func (s *Store) BeginRW(ctx context.Context) (storage.WriteTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning write transaction: %w", err)
	}
	return &writeTx{readTx{tx: tx}}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
