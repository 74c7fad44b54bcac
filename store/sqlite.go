// Copyright 2026 The Nodevisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists nodevisor state in SQLite, using the pure Go
// driver so that no cgo is required.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/nodevisor/nodevisor"
)

// SQLite is a nodevisor.Store backed by a single database file.
type SQLite struct {
	db *sql.DB
}

var _ nodevisor.Store = &SQLite{}

// Open opens (or creates) the database at path.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS servers (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			suspended  INTEGER NOT NULL DEFAULT 0,
			users      TEXT NOT NULL DEFAULT '{}',
			files      TEXT NOT NULL DEFAULT '{}',
			startup    TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS servers_owner ON servers (owner_id, name)`,
		`CREATE TABLE IF NOT EXISTS process_state (
			owner_id   TEXT NOT NULL,
			server_id  TEXT NOT NULL,
			running    INTEGER NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (owner_id, server_id)
		)`,
		`CREATE TABLE IF NOT EXISTS console_lines (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id  TEXT NOT NULL,
			server_id TEXT NOT NULL,
			time      TEXT NOT NULL,
			severity  TEXT NOT NULL,
			text      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS console_lines_key ON console_lines (owner_id, server_id, seq)`,
		`CREATE TABLE IF NOT EXISTS events (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			time    TEXT NOT NULL,
			name    TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			admin         INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// withTx runs fn in a transaction, committing if it succeeds.
func (s *SQLite) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
