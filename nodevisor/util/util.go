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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"sort"
	"time"

	"github.com/nodevisor/nodevisor/rest"
)

// Status returns the one word summary shown for a server.
func Status(s *rest.ServerInfo) string {
	if s.Suspended {
		return "suspended"
	}
	if s.Status == nil {
		return "-"
	}
	return s.Status.State
}

// Running reports whether the server has a live process.
func Running(s *rest.ServerInfo) bool {
	return s.Status != nil && s.Status.State == "running"
}

// Uptime returns how long a running server has been up, or zero.
func Uptime(s *rest.ServerInfo) time.Duration {
	if !Running(s) || s.Status.StartTime == nil {
		return 0
	}
	d := time.Since(*s.Status.StartTime)
	// for printing second resolution is sufficient
	return d - d%time.Second
}

func FormatDuration(d time.Duration) string {

	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

type sorted []*rest.ServerInfo

func (s sorted) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s sorted) Len() int {
	return len(s)
}

func (s sorted) Less(i, j int) bool {
	a := s[i]
	b := s[j]

	if a.Suspended != b.Suspended {
		// suspended servers sink to the bottom
		return b.Suspended
	}
	if ra, rb := Running(a), Running(b); ra != rb {
		return ra
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

// SortServers orders running servers first, suspended ones last, and
// otherwise by name.
func SortServers(items []*rest.ServerInfo) {
	sort.Sort(sorted(items))
}
