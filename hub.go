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
	"sync/atomic"
)

// Message types pushed to viewers.
const (
	MessageHistory = "history" // Sent once on attach
	MessageLine    = "line"    // A new console line
	MessageClear   = "clear"   // The console was cleared
	MessageState   = "state"   // The lifecycle state changed
)

// Message is what a viewer receives.
type Message struct {
	Type  string `json:"type"`
	Line  *Line  `json:"line,omitempty"`
	Lines []Line `json:"lines,omitempty"`
	State string `json:"state,omitempty"`
}

const subscriptionDepth = 256

// Subscription is one viewer's feed for a single server.  A viewer that
// falls a full buffer behind is detached; it must attach again to resync.
type Subscription struct {
	C <-chan Message

	ch       chan Message
	key      Key
	hub      *Hub
	overflow int32
	once     sync.Once
}

// Key returns the server this subscription follows.
func (s *Subscription) Key() Key {
	return s.key
}

// Overflowed reports whether the viewer was detached for falling behind.
func (s *Subscription) Overflowed() bool {
	return atomic.LoadInt32(&s.overflow) != 0
}

// Close detaches the viewer.  C is closed afterwards.  It is safe to call
// more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans messages out to the viewers of each server.  Publishing only
// touches the viewers of one key.
type Hub struct {
	subs map[Key]map[*Subscription]bool
	mx   sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{subs: make(map[Key]map[*Subscription]bool)}
}

// Subscribe attaches a new viewer to key.
func (h *Hub) Subscribe(key Key) *Subscription {
	ch := make(chan Message, subscriptionDepth)
	s := &Subscription{C: ch, ch: ch, key: key, hub: h}
	h.mx.Lock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*Subscription]bool)
		h.subs[key] = set
	}
	set[s] = true
	h.mx.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mx.Lock()
	if set, ok := h.subs[s.key]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.key)
		}
	}
	close(s.ch)
	h.mx.Unlock()
}

// Publish delivers m to every viewer of key.  A viewer whose buffer is
// full is detached instead of stalling the publisher, so no viewer ever
// sees a gap in its feed.
func (h *Hub) Publish(key Key, m Message) {
	var full []*Subscription
	h.mx.RLock()
	for s := range h.subs[key] {
		if atomic.LoadInt32(&s.overflow) != 0 {
			continue
		}
		select {
		case s.ch <- m:
		default:
			if atomic.CompareAndSwapInt32(&s.overflow, 0, 1) {
				full = append(full, s)
			}
		}
	}
	h.mx.RUnlock()
	for _, s := range full {
		s.Close()
	}
}

// Count returns the number of viewers attached to key.
func (h *Hub) Count(key Key) int {
	h.mx.RLock()
	defer h.mx.RUnlock()
	return len(h.subs[key])
}

// CloseAll detaches every viewer of key.
func (h *Hub) CloseAll(key Key) {
	h.mx.RLock()
	subs := make([]*Subscription, 0, len(h.subs[key]))
	for s := range h.subs[key] {
		subs = append(subs, s)
	}
	h.mx.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}
