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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nodevisor/nodevisor"
)

// RecordEvent appends to the audit trail.
func (s *SQLite) RecordEvent(ctx context.Context, ev nodevisor.Event) error {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (time, name, details) VALUES (?, ?, ?)`,
		ev.Time.Format(time.RFC3339Nano), ev.Name, string(details))
	return err
}

// RecentEvents returns up to limit newest audit events, newest first.
func (s *SQLite) RecentEvents(ctx context.Context, limit int) ([]nodevisor.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, name, details FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rv []nodevisor.Event
	for rows.Next() {
		var ev nodevisor.Event
		var ts, details string
		if err := rows.Scan(&ts, &ev.Name, &details); err != nil {
			return nil, err
		}
		ev.Time, _ = time.Parse(time.RFC3339Nano, ts)
		if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
			return nil, err
		}
		rv = append(rv, ev)
	}
	return rv, rows.Err()
}

const accountColumns = `id, name, password_hash, admin, created_at`

// SaveAccount inserts or replaces an account.
func (s *SQLite) SaveAccount(ctx context.Context, a *nodevisor.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			password_hash = excluded.password_hash,
			admin = excluded.admin
	`, a.ID, a.Name, a.PasswordHash, boolInt(a.Admin), a.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// GetAccount retrieves an account by id.
func (s *SQLite) GetAccount(ctx context.Context, id string) (*nodevisor.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

// GetAccountByName retrieves an account by its login name.
func (s *SQLite) GetAccountByName(ctx context.Context, name string) (*nodevisor.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name))
}

func scanAccount(sc scanner) (*nodevisor.Account, error) {
	var a nodevisor.Account
	var admin int
	var createdAt string
	err := sc.Scan(&a.ID, &a.Name, &a.PasswordHash, &admin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nodevisor.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Admin = admin != 0
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}
