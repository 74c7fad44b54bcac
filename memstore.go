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
	"sort"
	"sync"
)

// MemoryStore is a Store that keeps everything in process memory.  It
// forgets everything when the process exits.
type MemoryStore struct {
	servers  map[string]*Server
	states   map[Key]ProcessState
	lines    map[Key][]Line
	events   []Event
	accounts map[string]*Account
	mx       sync.Mutex
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		servers:  make(map[string]*Server),
		states:   make(map[Key]ProcessState),
		lines:    make(map[Key][]Line),
		accounts: make(map[string]*Account),
	}
}

func copyServer(s *Server) *Server {
	c := *s
	c.Users = make(map[string]Permissions, len(s.Users))
	for k, v := range s.Users {
		c.Users[k] = v
	}
	c.Files = s.Files.Clone()
	return &c
}

func (ms *MemoryStore) GetServer(_ context.Context, id string) (*Server, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	if s, ok := ms.servers[id]; ok {
		return copyServer(s), nil
	}
	return nil, ErrServerNotFound
}

func (ms *MemoryStore) SaveServer(_ context.Context, s *Server) error {
	ms.mx.Lock()
	ms.servers[s.ID] = copyServer(s)
	ms.mx.Unlock()
	return nil
}

func (ms *MemoryStore) DeleteServer(_ context.Context, id string) error {
	ms.mx.Lock()
	delete(ms.servers, id)
	ms.mx.Unlock()
	return nil
}

func (ms *MemoryStore) ListServers(_ context.Context, ownerID string) ([]*Server, error) {
	ms.mx.Lock()
	rv := make([]*Server, 0, len(ms.servers))
	for _, s := range ms.servers {
		if ownerID == "" || s.OwnerID == ownerID {
			rv = append(rv, copyServer(s))
		}
	}
	ms.mx.Unlock()
	sort.Slice(rv, func(i, j int) bool { return rv[i].Name < rv[j].Name })
	return rv, nil
}

func (ms *MemoryStore) SetState(_ context.Context, key Key, st ProcessState) error {
	ms.mx.Lock()
	ms.states[key] = st
	ms.mx.Unlock()
	return nil
}

func (ms *MemoryStore) GetState(_ context.Context, key Key) (ProcessState, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	return ms.states[key], nil
}

func (ms *MemoryStore) ClearState(_ context.Context, key Key) error {
	ms.mx.Lock()
	delete(ms.states, key)
	ms.mx.Unlock()
	return nil
}

func (ms *MemoryStore) RunningKeys(_ context.Context) ([]Key, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	var rv []Key
	for k, st := range ms.states {
		if st.IsRunning {
			rv = append(rv, k)
		}
	}
	return rv, nil
}

func (ms *MemoryStore) AppendLines(_ context.Context, key Key, add []Line) error {
	ms.mx.Lock()
	lines := append(ms.lines[key], add...)
	if len(lines) > MaxStoredLines {
		lines = append([]Line(nil), lines[len(lines)-MaxStoredLines:]...)
	}
	ms.lines[key] = lines
	ms.mx.Unlock()
	return nil
}

func (ms *MemoryStore) RecentLines(_ context.Context, key Key, limit int) ([]Line, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	lines := ms.lines[key]
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return append([]Line(nil), lines...), nil
}

func (ms *MemoryStore) ClearLines(_ context.Context, key Key) error {
	ms.mx.Lock()
	delete(ms.lines, key)
	ms.mx.Unlock()
	return nil
}

func (ms *MemoryStore) RecordEvent(_ context.Context, ev Event) error {
	ms.mx.Lock()
	ms.events = append(ms.events, ev)
	ms.mx.Unlock()
	return nil
}

// Events returns the recorded audit trail.
func (ms *MemoryStore) Events() []Event {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	return append([]Event(nil), ms.events...)
}

func (ms *MemoryStore) GetAccount(_ context.Context, id string) (*Account, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	if a, ok := ms.accounts[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, ErrAccountNotFound
}

func (ms *MemoryStore) GetAccountByName(_ context.Context, name string) (*Account, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	for _, a := range ms.accounts {
		if a.Name == name {
			c := *a
			return &c, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (ms *MemoryStore) SaveAccount(_ context.Context, a *Account) error {
	ms.mx.Lock()
	c := *a
	ms.accounts[a.ID] = &c
	ms.mx.Unlock()
	return nil
}
