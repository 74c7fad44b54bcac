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
	"time"

	"github.com/nodevisor/nodevisor"
)

// AppendLines stores console lines in one transaction, then drops the
// oldest lines of the server beyond nodevisor.MaxStoredLines.
func (s *SQLite) AppendLines(ctx context.Context, key nodevisor.Key, lines []nodevisor.Line) error {
	if len(lines) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		ins, err := tx.PrepareContext(ctx, `
			INSERT INTO console_lines (owner_id, server_id, time, severity, text)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer ins.Close()
		for _, line := range lines {
			_, err = ins.ExecContext(ctx, key.OwnerID, key.ServerID,
				line.Time.Format(time.RFC3339Nano), line.Severity.String(), line.Text)
			if err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM console_lines
			WHERE owner_id = ? AND server_id = ? AND seq <= (
				SELECT seq FROM console_lines
				WHERE owner_id = ? AND server_id = ?
				ORDER BY seq DESC LIMIT 1 OFFSET ?
			)
		`, key.OwnerID, key.ServerID, key.OwnerID, key.ServerID, nodevisor.MaxStoredLines)
		return err
	})
}

// RecentLines returns up to limit newest lines, oldest first.  A limit of
// zero or less returns everything stored.
func (s *SQLite) RecentLines(ctx context.Context, key nodevisor.Key, limit int) ([]nodevisor.Line, error) {
	if limit <= 0 {
		limit = nodevisor.MaxStoredLines
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, time, severity, text FROM (
			SELECT seq, time, severity, text FROM console_lines
			WHERE owner_id = ? AND server_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq
	`, key.OwnerID, key.ServerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rv []nodevisor.Line
	for rows.Next() {
		var l nodevisor.Line
		var ts, sev string
		if err := rows.Scan(&l.ID, &ts, &sev, &l.Text); err != nil {
			return nil, err
		}
		l.Time, _ = time.Parse(time.RFC3339Nano, ts)
		l.Severity = nodevisor.ParseSeverity(sev)
		rv = append(rv, l)
	}
	return rv, rows.Err()
}

// ClearLines removes every stored line of a server.
func (s *SQLite) ClearLines(ctx context.Context, key nodevisor.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM console_lines WHERE owner_id = ? AND server_id = ?`,
		key.OwnerID, key.ServerID)
	return err
}
