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
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Key identifies one server of one owner.  It is the unit of exclusivity
// for processes, consoles, and working directories.
type Key struct {
	OwnerID  string `json:"ownerId"`
	ServerID string `json:"serverId"`
}

func (k Key) String() string {
	return k.OwnerID + "/" + k.ServerID
}

// Actor is the account on whose behalf an operation runs.  Admin actors
// bypass suspension and per-server permissions.
type Actor struct {
	ID    string
	Admin bool
}

// Permissions is the fixed set of rights an account can hold on a server.
type Permissions struct {
	ViewConsole  bool `json:"viewConsole"`
	ViewFiles    bool `json:"viewFiles"`
	EditFiles    bool `json:"editFiles"`
	ViewSettings bool `json:"viewSettings"`
	EditSettings bool `json:"editSettings"`
	ViewUsers    bool `json:"viewUsers"`
	EditUsers    bool `json:"editUsers"`
	ViewStartup  bool `json:"viewStartup"`
	EditStartup  bool `json:"editStartup"`
}

// OwnerPermissions returns the all-rights record the owner implicitly has.
func OwnerPermissions() Permissions {
	return Permissions{
		ViewConsole:  true,
		ViewFiles:    true,
		EditFiles:    true,
		ViewSettings: true,
		EditSettings: true,
		ViewUsers:    true,
		EditUsers:    true,
		ViewStartup:  true,
		EditStartup:  true,
	}
}

// Any reports whether at least one right is granted.
func (p Permissions) Any() bool {
	return p != Permissions{}
}

// ProcessState is the durable hint of whether a server is running.  It
// survives a daemon restart, while the process handle does not.
type ProcessState struct {
	IsRunning bool       `json:"isRunning"`
	StartTime *time.Time `json:"startTime"`
}

// Server is a tenant-owned sandbox definition.
type Server struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	OwnerID   string                 `json:"ownerId"`
	Suspended bool                   `json:"isSuspended"`
	Users     map[string]Permissions `json:"users"`
	Files     Files                  `json:"files"`
	Startup   StartupSettings        `json:"startupSettings"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

const maxNameLength = 64

// NewServer returns an empty server owned by ownerID.  The name is trimmed
// and must be non-empty.
func NewServer(ownerID, name string) (*Server, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Server{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		Users:     make(map[string]Permissions),
		Files:     make(Files),
		Startup:   DefaultStartupSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "\r\n\t") {
		return ErrInvalidName
	}
	return nil
}

// Key returns the composite key of the server.
func (s *Server) Key() Key {
	return Key{OwnerID: s.OwnerID, ServerID: s.ID}
}

// PermissionsFor returns the rights held by the given account.
func (s *Server) PermissionsFor(accountID string) Permissions {
	if accountID == s.OwnerID {
		return OwnerPermissions()
	}
	return s.Users[accountID]
}

// Allowed reports whether the actor passes check on this server.
func (s *Server) Allowed(a Actor, check func(Permissions) bool) bool {
	if a.Admin {
		return true
	}
	return check(s.PermissionsFor(a.ID))
}

// SetUser grants perms to an account.  Granting to the owner is a no-op,
// since the owner already holds every right.
func (s *Server) SetUser(accountID string, perms Permissions) {
	if accountID == s.OwnerID {
		return
	}
	if s.Users == nil {
		s.Users = make(map[string]Permissions)
	}
	s.Users[accountID] = perms
}

// RemoveUser revokes every right of an account.  The owner cannot be
// removed.
func (s *Server) RemoveUser(accountID string) error {
	if accountID == s.OwnerID {
		return ErrOwnerImmutable
	}
	delete(s.Users, accountID)
	return nil
}

// Touch records a modification.
func (s *Server) Touch() {
	s.UpdatedAt = time.Now()
}

// Account identifies someone using the dashboard.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Actor returns the actor for this account.
func (a *Account) Actor() Actor {
	return Actor{ID: a.ID, Admin: a.Admin}
}

// Event is an audit record.
type Event struct {
	Time    time.Time         `json:"timestamp"`
	Name    string            `json:"event"`
	Details map[string]string `json:"details"`
}
