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

const serverColumns = `id, owner_id, name, suspended, users, files, startup, created_at, updated_at`

// SaveServer inserts or replaces a server.
func (s *SQLite) SaveServer(ctx context.Context, srv *nodevisor.Server) error {
	usersJSON, err := json.Marshal(srv.Users)
	if err != nil {
		return err
	}
	filesJSON, err := json.Marshal(srv.Files)
	if err != nil {
		return err
	}
	startupJSON, err := json.Marshal(srv.Startup)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO servers (`+serverColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			suspended = excluded.suspended,
			users = excluded.users,
			files = excluded.files,
			startup = excluded.startup,
			updated_at = excluded.updated_at
	`, srv.ID, srv.OwnerID, srv.Name, boolInt(srv.Suspended),
		string(usersJSON), string(filesJSON), string(startupJSON),
		srv.CreatedAt.Format(time.RFC3339Nano), srv.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// GetServer retrieves a server by id.
func (s *SQLite) GetServer(ctx context.Context, id string) (*nodevisor.Server, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	srv, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nodevisor.ErrServerNotFound
	}
	return srv, err
}

// DeleteServer removes a server.
func (s *SQLite) DeleteServer(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	return err
}

// ListServers returns the servers of ownerID, or all servers, by name.
func (s *SQLite) ListServers(ctx context.Context, ownerID string) ([]*nodevisor.Server, error) {
	var rows *sql.Rows
	var err error
	if ownerID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+serverColumns+` FROM servers ORDER BY name`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+serverColumns+` FROM servers WHERE owner_id = ? ORDER BY name`, ownerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rv []*nodevisor.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		rv = append(rv, srv)
	}
	return rv, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanServer(sc scanner) (*nodevisor.Server, error) {
	var srv nodevisor.Server
	var suspended int
	var usersJSON, filesJSON, startupJSON, createdAt, updatedAt string
	err := sc.Scan(&srv.ID, &srv.OwnerID, &srv.Name, &suspended,
		&usersJSON, &filesJSON, &startupJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	srv.Suspended = suspended != 0
	if err := json.Unmarshal([]byte(usersJSON), &srv.Users); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filesJSON), &srv.Files); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(startupJSON), &srv.Startup); err != nil {
		return nil, err
	}
	if srv.Users == nil {
		srv.Users = make(map[string]nodevisor.Permissions)
	}
	if srv.Files == nil {
		srv.Files = make(nodevisor.Files)
	}
	srv.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	srv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &srv, nil
}
