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
	"time"
)

const (
	MaxLogRecords = 1000
)

// Log is a fixed size ring of console lines.  Every change moves the id
// forward, so the id doubles as an Etag for pollers.
type Log struct {
	records    []Line
	numRecords int
	maxRecords int
	id         int64
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
}

func (log *Log) lock() {
	log.mx.Lock()
}

func (log *Log) unlock() {
	log.mx.Unlock()
}

func (log *Log) wakeUp() {
	for cv := range log.cvs {
		cv.Broadcast()
	}
}

// add stores one line.  Call with lock held.
func (log *Log) add(line Line) Line {
	log.id++
	line.ID = log.id
	// NB: numRecords may exceed maxRecords once we have wrapped; it is
	// really the index of the next slot.
	log.records[log.numRecords%log.maxRecords] = line
	log.numRecords++
	return line
}

// Append stores a line, evicting the oldest once the ring is full, and
// returns the line with its id filled in.
func (log *Log) Append(line Line) Line {
	log.lock()
	line = log.add(line)
	log.wakeUp()
	log.unlock()
	return line
}

// Load replaces the contents with lines, oldest first.
func (log *Log) Load(lines []Line) {
	log.lock()
	log.numRecords = 0
	for _, l := range lines {
		log.add(l)
	}
	log.wakeUp()
	log.unlock()
}

// Clear drops every record.
func (log *Log) Clear() {
	log.lock()
	log.numRecords = 0
	for i := range log.records {
		log.records[i] = Line{}
	}
	// We presume that we cannot add new records more quickly than
	// once every nanosecond.
	log.id = time.Now().UnixNano()
	log.wakeUp()
	log.unlock()
}

// Len returns the number of retained records.
func (log *Log) Len() int {
	log.lock()
	defer log.unlock()
	if log.numRecords > log.maxRecords {
		return log.maxRecords
	}
	return log.numRecords
}

// recent returns up to limit newest records, oldest first.  A limit of
// zero or less returns everything.  Call with lock held.
func (log *Log) recent(limit int) []Line {
	cnt := log.numRecords
	if cnt > log.maxRecords {
		cnt = log.maxRecords
	}
	if limit > 0 && limit < cnt {
		cnt = limit
	}
	recs := make([]Line, 0, cnt)
	for index := log.numRecords - cnt; index < log.numRecords; index++ {
		recs = append(recs, log.records[index%log.maxRecords])
	}
	return recs
}

// Recent returns up to limit of the newest records in chronological order.
func (log *Log) Recent(limit int) []Line {
	log.lock()
	defer log.unlock()
	return log.recent(limit)
}

// GetRecords returns the records that are stored, as well as an ID
// suitable for use as an Etag.  If last matches the current ID, nothing
// has changed and nil is returned without copying anything.
func (log *Log) GetRecords(last int64) ([]Line, int64) {
	log.lock()
	defer log.unlock()
	if log.id == last {
		return nil, last
	}
	return log.recent(0), log.id
}

// ID returns the current Etag.
func (log *Log) ID() int64 {
	log.lock()
	defer log.unlock()
	return log.id
}

// Watch waits until the log changes from last, or expire passes.  It
// returns the (possibly unchanged) current ID.  An expire of zero polls.
func (log *Log) Watch(last int64, expire time.Duration) int64 {
	expired := false
	var timer *time.Timer
	cv := sync.NewCond(&log.mx)
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			log.lock()
			expired = true
			cv.Broadcast()
			log.unlock()
		})
	} else {
		expired = true
	}

	log.lock()
	log.cvs[cv] = true
	for log.id == last && !expired {
		cv.Wait()
	}
	delete(log.cvs, cv)
	last = log.id
	log.unlock()
	if timer != nil {
		timer.Stop()
	}
	return last
}

// NewLog returns a Log retaining at most max records.  A max of zero
// selects MaxLogRecords.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Log{
		records:    make([]Line, max),
		maxRecords: max,
		id:         time.Now().UnixNano(),
		cvs:        make(map[*sync.Cond]bool),
	}
}
