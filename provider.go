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

package nodevisor

import (
	"context"
)

// MaxStoredLines bounds the durable console of each server.  Stores drop
// the oldest lines beyond it.
const MaxStoredLines = 5000

// ServerStore persists server records.  Implementations must return
// copies; callers mutate what they get and write it back with SaveServer.
type ServerStore interface {
	// GetServer returns ErrServerNotFound for unknown ids.
	GetServer(ctx context.Context, id string) (*Server, error)

	// SaveServer inserts or replaces the full record.
	SaveServer(ctx context.Context, s *Server) error

	// DeleteServer removes the record.  Deleting an unknown id is not
	// an error.
	DeleteServer(ctx context.Context, id string) error

	// ListServers returns the servers owned by ownerID, or every server
	// if ownerID is empty, ordered by name.
	ListServers(ctx context.Context, ownerID string) ([]*Server, error)
}

// StateStore persists the running hint of each server.  It holds no
// business logic.
type StateStore interface {
	SetState(ctx context.Context, key Key, st ProcessState) error

	// GetState returns the zero ProcessState when nothing is stored.
	GetState(ctx context.Context, key Key) (ProcessState, error)

	ClearState(ctx context.Context, key Key) error

	// RunningKeys lists every key whose stored state says running.
	RunningKeys(ctx context.Context) ([]Key, error)
}

// LogStore persists console lines, at most MaxStoredLines per key.
type LogStore interface {
	// AppendLines stores lines in order, as one unit where the backend
	// allows it.
	AppendLines(ctx context.Context, key Key, lines []Line) error

	// RecentLines returns up to limit newest lines, oldest first.
	RecentLines(ctx context.Context, key Key, limit int) ([]Line, error)

	ClearLines(ctx context.Context, key Key) error
}

// EventLog is the audit trail.  Callers never fail an operation because
// recording failed.
type EventLog interface {
	RecordEvent(ctx context.Context, ev Event) error
}

// AccountStore persists dashboard accounts.
type AccountStore interface {
	// GetAccount and GetAccountByName return ErrAccountNotFound for
	// unknown accounts.
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByName(ctx context.Context, name string) (*Account, error)
	SaveAccount(ctx context.Context, a *Account) error
}

// Store is everything the daemon persists.
type Store interface {
	ServerStore
	StateStore
	LogStore
	EventLog
	AccountStore
}
