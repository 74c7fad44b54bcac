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

package util

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nodevisor/nodevisor"
	"github.com/nodevisor/nodevisor/rest"
)

func TestFormatDuration(t *testing.T) {
	Convey("Durations print as h:mm:ss", t, func() {
		So(FormatDuration(0), ShouldEqual, "0:00:00")
		So(FormatDuration(61*time.Second), ShouldEqual, "0:01:01")
		So(FormatDuration(26*time.Hour+3*time.Minute), ShouldEqual, "26:03:00")
	})
}

func TestSortServers(t *testing.T) {
	Convey("Servers sort running first and suspended last", t, func() {
		start := time.Now().Add(-time.Minute)
		running := &nodevisor.Status{State: "running", IsRunning: true, StartTime: &start}
		stopped := &nodevisor.Status{State: "stopped"}
		items := []*rest.ServerInfo{
			{ID: "1", Name: "zeta", Suspended: true, Status: stopped},
			{ID: "2", Name: "beta", Status: stopped},
			{ID: "3", Name: "omega", Status: running},
			{ID: "4", Name: "alpha"},
		}
		SortServers(items)
		names := []string{}
		for _, s := range items {
			names = append(names, s.Name)
		}
		So(names, ShouldResemble, []string{"omega", "alpha", "beta", "zeta"})

		So(Status(items[0]), ShouldEqual, "running")
		So(Status(items[1]), ShouldEqual, "-")
		So(Status(items[3]), ShouldEqual, "suspended")
		So(Uptime(items[0]), ShouldBeGreaterThanOrEqualTo, time.Minute)
		So(Uptime(items[2]), ShouldEqual, time.Duration(0))
	})
}
