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
	"errors"
	"time"

	"github.com/nodevisor/nodevisor"
)

// SetState records whether a server is running.
func (s *SQLite) SetState(ctx context.Context, key nodevisor.Key, st nodevisor.ProcessState) error {
	start := ""
	if st.StartTime != nil {
		start = st.StartTime.Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO process_state (owner_id, server_id, running, start_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, server_id) DO UPDATE SET
			running = excluded.running,
			start_time = excluded.start_time
	`, key.OwnerID, key.ServerID, boolInt(st.IsRunning), start)
	return err
}

// GetState returns the recorded state, or the stopped state if none.
func (s *SQLite) GetState(ctx context.Context, key nodevisor.Key) (nodevisor.ProcessState, error) {
	var running int
	var start string
	err := s.db.QueryRowContext(ctx, `
		SELECT running, start_time FROM process_state
		WHERE owner_id = ? AND server_id = ?
	`, key.OwnerID, key.ServerID).Scan(&running, &start)
	if errors.Is(err, sql.ErrNoRows) {
		return nodevisor.ProcessState{}, nil
	}
	if err != nil {
		return nodevisor.ProcessState{}, err
	}
	st := nodevisor.ProcessState{IsRunning: running != 0}
	if t, err := time.Parse(time.RFC3339Nano, start); err == nil {
		st.StartTime = &t
	}
	return st, nil
}

// ClearState forgets the state of a server.
func (s *SQLite) ClearState(ctx context.Context, key nodevisor.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM process_state WHERE owner_id = ? AND server_id = ?`,
		key.OwnerID, key.ServerID)
	return err
}

// RunningKeys lists the servers recorded as running.
func (s *SQLite) RunningKeys(ctx context.Context) ([]nodevisor.Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, server_id FROM process_state WHERE running != 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rv []nodevisor.Key
	for rows.Next() {
		var k nodevisor.Key
		if err := rows.Scan(&k.OwnerID, &k.ServerID); err != nil {
			return nil, err
		}
		rv = append(rv, k)
	}
	return rv, rows.Err()
}
