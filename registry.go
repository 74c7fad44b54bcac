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
	"sync"
)

// Registry maps each server to its live process handle.  It is never
// persisted; a fresh daemon starts with an empty registry.
type Registry struct {
	procs map[Key]*Process
	mx    sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[Key]*Process)}
}

// Set registers p for key.  A key holds at most one handle.
func (r *Registry) Set(key Key, p *Process) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.procs[key]; ok {
		return ErrAlreadyRunning
	}
	r.procs[key] = p
	return nil
}

// Get returns the handle for key, or nil.
func (r *Registry) Get(key Key) *Process {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.procs[key]
}

// Delete removes and returns the handle for key, if any.
func (r *Registry) Delete(key Key) *Process {
	r.mx.Lock()
	defer r.mx.Unlock()
	p := r.procs[key]
	delete(r.procs, key)
	return p
}

// DeleteIf removes the handle for key only if it is p, and reports
// whether it did.  A late exit of an old process must not unregister
// its successor.
func (r *Registry) DeleteIf(key Key, p *Process) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	if cur, ok := r.procs[key]; ok && cur == p {
		delete(r.procs, key)
		return true
	}
	return false
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.procs)
}

// Keys lists the keys with live handles.
func (r *Registry) Keys() []Key {
	r.mx.Lock()
	defer r.mx.Unlock()
	rv := make([]Key, 0, len(r.procs))
	for k := range r.procs {
		rv = append(rv, k)
	}
	return rv
}
