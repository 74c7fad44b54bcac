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
	"strings"
)

// nameFree checks that no other server of owner is called name.  Names
// compare case-insensitively.  Call with editMx held.
func (m *Manager) nameFree(ctx context.Context, owner, name, except string) error {
	list, err := m.store.ListServers(ctx, owner)
	if err != nil {
		return err
	}
	for _, s := range list {
		if s.ID != except && strings.EqualFold(s.Name, name) {
			return ErrNameTaken
		}
	}
	return nil
}

// CreateServer makes an empty server owned by a.
func (m *Manager) CreateServer(ctx context.Context, a Actor, name string) (*Server, error) {
	srv, err := NewServer(a.ID, name)
	if err != nil {
		return nil, err
	}
	m.editMx.Lock()
	defer m.editMx.Unlock()
	if err := m.nameFree(ctx, a.ID, srv.Name, ""); err != nil {
		return nil, err
	}
	if err := m.store.SaveServer(ctx, srv); err != nil {
		return nil, err
	}
	m.record(srv.Key(), a, "server.create", "name", srv.Name)
	return srv, nil
}

// GetServer returns the server with the given id.
func (m *Manager) GetServer(ctx context.Context, id string) (*Server, error) {
	return m.store.GetServer(ctx, id)
}

// Servers lists the servers a can see: all of them for admins, otherwise
// those owned by or shared with a.
func (m *Manager) Servers(ctx context.Context, a Actor) ([]*Server, error) {
	list, err := m.store.ListServers(ctx, "")
	if err != nil || a.Admin {
		return list, err
	}
	rv := make([]*Server, 0, len(list))
	for _, s := range list {
		if s.PermissionsFor(a.ID).Any() {
			rv = append(rv, s)
		}
	}
	return rv, nil
}

// UpdateServer applies fn to the stored record of id and saves the
// result.  Edits of server records are serialized, so concurrent updates
// are never lost.  Nothing is saved if fn fails.
func (m *Manager) UpdateServer(ctx context.Context, a Actor, id, event string, fn func(*Server) error) (*Server, error) {
	m.editMx.Lock()
	defer m.editMx.Unlock()
	srv, err := m.store.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(srv); err != nil {
		return nil, err
	}
	srv.Touch()
	if err := m.store.SaveServer(ctx, srv); err != nil {
		return nil, err
	}
	if event != "" {
		m.record(srv.Key(), a, event)
	}
	return srv, nil
}

// RenameServer changes the display name of a server.  Names are unique
// per owner.
func (m *Manager) RenameServer(ctx context.Context, a Actor, id, name string) (*Server, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return m.UpdateServer(ctx, a, id, "server.rename", func(s *Server) error {
		if err := m.nameFree(ctx, s.OwnerID, name, s.ID); err != nil {
			return err
		}
		s.Name = name
		return nil
	})
}

// SetSuspended suspends or reinstates a server.  Only admins may do so.
// Suspending a running server kills it.
func (m *Manager) SetSuspended(ctx context.Context, a Actor, id string, suspended bool) (*Server, error) {
	if !a.Admin {
		return nil, ErrPermission
	}
	event := "server.unsuspend"
	if suspended {
		event = "server.suspend"
	}
	srv, err := m.UpdateServer(ctx, a, id, event, func(s *Server) error {
		s.Suspended = suspended
		return nil
	})
	if err != nil {
		return nil, err
	}
	if suspended {
		m.warnf(srv.Key(), "Server suspended by an administrator")
		if m.registry.Get(srv.Key()) != nil {
			m.Kill(ctx, a, srv.Key())
		}
	} else {
		m.infof(srv.Key(), "Server reinstated")
	}
	return srv, nil
}

// DeleteServer kills a running server, then forgets everything about it.
// A server that is starting or stopping cannot be deleted until it
// settles.
func (m *Manager) DeleteServer(ctx context.Context, a Actor, key Key) error {
	if _, err := m.server(ctx, key); err != nil {
		return err
	}
	if m.State(key).Busy() {
		return ErrBusy
	}
	if m.registry.Get(key) != nil {
		if err := m.Kill(ctx, a, key); err != nil {
			return err
		}
	} else {
		m.removeWorkDir(key)
	}
	m.editMx.Lock()
	err := m.store.DeleteServer(ctx, key.ServerID)
	m.editMx.Unlock()
	if err != nil {
		return err
	}
	m.clearState(key)
	m.console.Forget(key)
	m.record(key, a, "server.delete")
	return nil
}
