// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// applyMigrations creates the bootstrap table on first open and applies any
// migration file whose name is not yet recorded, in sorted filename order.
// Each migration runs in its own transaction, so the whole procedure is
// idempotent and safe to re-run on every open.
func applyMigrations(db *sql.DB, logger *zap.Logger) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		name       TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query(`SELECT name FROM _migrations`)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		script, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		if err := applyMigration(db, name, string(script)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		logger.Info("Applied migration", zap.String("migration", name))
	}
	return nil
}

func applyMigration(db *sql.DB, name, script string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`INSERT INTO _migrations (name, applied_at) VALUES (?, ?)`, name, appliedAt); err != nil {
		return err
	}
	return tx.Commit()
}
