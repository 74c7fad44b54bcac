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
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// storeTimeout bounds each call the console makes into its LogStore.
const storeTimeout = 5 * time.Second

type consoleEntry struct {
	log      *Log
	loaded   bool
	pending  []Line // appended but not yet stored
	cleared  bool   // a store clear precedes pending
	flushing bool
	idle     *sync.Cond
	mx       sync.Mutex
}

// Console is the per-server console: a bounded ring in memory, backed by
// a LogStore and mirrored to live viewers through a Hub.  Lines for one
// server are stored and published in the order they were appended.
//
// Storage happens behind the caller.  Each server has at most one
// goroutine writing its queued lines in batches, so a slow store never
// holds up appends, and servers never wait on each other's writes.
type Console struct {
	store   LogStore
	hub     *Hub
	logger  *zap.Logger
	entries map[Key]*consoleEntry
	mx      sync.Mutex
}

// NewConsole returns a Console persisting to store and publishing to hub.
// A nil logger discards diagnostics.
func NewConsole(store LogStore, hub *Hub, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		store:   store,
		hub:     hub,
		logger:  logger,
		entries: make(map[Key]*consoleEntry),
	}
}

// entry returns the locked entry for key, hydrating it from the store the
// first time it is used.  The caller must unlock it.
func (c *Console) entry(key Key) *consoleEntry {
	c.mx.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &consoleEntry{log: NewLog(MaxLogRecords)}
		e.idle = sync.NewCond(&e.mx)
		c.entries[key] = e
	}
	c.mx.Unlock()

	e.mx.Lock()
	if !e.loaded {
		e.loaded = true
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		lines, err := c.store.RecentLines(ctx, key, MaxLogRecords)
		cancel()
		if err != nil {
			c.logger.Warn("console hydrate failed",
				zap.Stringer("server", key), zap.Error(err))
		} else if len(lines) != 0 {
			e.log.Load(lines)
		}
	}
	return e
}

// Append records a line and pushes it to viewers.  The returned line
// carries its assigned id.
func (c *Console) Append(key Key, line Line) Line {
	e := c.entry(key)
	defer e.mx.Unlock()

	line = e.log.Append(line)
	e.pending = append(e.pending, line)
	c.kick(key, e)
	c.hub.Publish(key, Message{Type: MessageLine, Line: &line})
	return line
}

// kick starts the writer of e if it is not running.  e must be locked.
func (c *Console) kick(key Key, e *consoleEntry) {
	if !e.flushing {
		e.flushing = true
		go c.flush(key, e)
	}
}

// flush writes queued work for key until none is left.
func (c *Console) flush(key Key, e *consoleEntry) {
	for {
		e.mx.Lock()
		if len(e.pending) == 0 && !e.cleared {
			e.flushing = false
			e.idle.Broadcast()
			e.mx.Unlock()
			return
		}
		lines, cleared := e.pending, e.cleared
		e.pending, e.cleared = nil, false
		e.mx.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if cleared {
			if err := c.store.ClearLines(ctx, key); err != nil {
				c.logger.Warn("console clear failed",
					zap.Stringer("server", key), zap.Error(err))
			}
		}
		if len(lines) != 0 {
			if err := c.store.AppendLines(ctx, key, lines); err != nil {
				c.logger.Warn("console persist failed",
					zap.Stringer("server", key),
					zap.Int("lines", len(lines)),
					zap.Error(err))
			}
		}
		cancel()
	}
}

// wait blocks until everything queued for e has been stored.  e must be
// locked.
func (e *consoleEntry) wait() {
	for e.flushing {
		e.idle.Wait()
	}
}

// Flush waits until every line appended so far has reached the store.
func (c *Console) Flush() {
	c.mx.Lock()
	entries := make([]*consoleEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mx.Unlock()
	for _, e := range entries {
		e.mx.Lock()
		e.wait()
		e.mx.Unlock()
	}
}

// Printf appends a formatted line with an explicit severity.
func (c *Console) Printf(key Key, sev Severity, format string, v ...interface{}) Line {
	return c.Append(key, NewLine(sev, fmt.Sprintf(format, v...)))
}

// Recent returns up to limit of the newest lines, oldest first.
func (c *Console) Recent(key Key, limit int) []Line {
	e := c.entry(key)
	defer e.mx.Unlock()
	return e.log.Recent(limit)
}

// Clear discards the transcript of key, both in memory and in the store,
// and tells viewers to reset.
func (c *Console) Clear(key Key) {
	e := c.entry(key)
	defer e.mx.Unlock()

	e.log.Clear()
	e.pending = nil
	e.cleared = true
	c.kick(key, e)
	c.hub.Publish(key, Message{Type: MessageClear})
}

// Attach subscribes a viewer to key and returns the history it should
// show first.  No line is missed or repeated between the two.
func (c *Console) Attach(key Key) ([]Line, *Subscription) {
	e := c.entry(key)
	defer e.mx.Unlock()
	return e.log.Recent(0), c.hub.Subscribe(key)
}

// Log returns the ring of key, for Etag style polling.
func (c *Console) Log(key Key) *Log {
	e := c.entry(key)
	defer e.mx.Unlock()
	return e.log
}

// Forget drops every trace of key, detaching its viewers.
func (c *Console) Forget(key Key) {
	c.Clear(key)
	c.hub.CloseAll(key)
	c.mx.Lock()
	e := c.entries[key]
	delete(c.entries, key)
	c.mx.Unlock()
	if e != nil {
		e.mx.Lock()
		e.wait()
		e.mx.Unlock()
	}
}
