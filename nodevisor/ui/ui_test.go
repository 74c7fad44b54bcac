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

package ui

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nodevisor/nodevisor"
	"github.com/nodevisor/nodevisor/rest"
)

func TestKeyMarkup(t *testing.T) {
	Convey("Key names are highlighted", t, func() {
		So(keyMarkup([]string{"[Q] Quit", "[H] Help"}), ShouldEqual,
			"[%AQ%N] Quit [%AH%N] Help")
		So(keyMarkup([]string{"100% [X]"}), ShouldEqual, "100%% [%AX%N]")
	})
}

func TestPad(t *testing.T) {
	Convey("Prompts are padded and truncated", t, func() {
		So(pad([]rune("ab"), 4), ShouldEqual, "ab  ")
		So(pad([]rune("abcdef"), 4), ShouldEqual, "<def")
	})
}

func TestServerKeys(t *testing.T) {
	Convey("Actions follow the server state", t, func() {
		s := &rest.ServerInfo{Permissions: nodevisor.OwnerPermissions()}
		So(serverKeys(s, nil), ShouldResemble, []string{"[L] Log", "[S] Start", "[R] Restart"})

		s.Status = &nodevisor.Status{State: "running"}
		So(serverKeys(s, nil), ShouldResemble,
			[]string{"[L] Log", "[T] Stop", "[K] Kill", "[R] Restart"})

		Convey("Without console rights there are none", func() {
			s.Permissions = nodevisor.Permissions{ViewFiles: true}
			So(serverKeys(s, nil), ShouldBeEmpty)
			So(rights(s), ShouldEqual, "view-files")
		})
	})
}

func TestServerTone(t *testing.T) {
	Convey("Servers are classified by state", t, func() {
		stopped := &rest.ServerInfo{}
		running := &rest.ServerInfo{Status: &nodevisor.Status{State: "running"}}
		installing := &rest.ServerInfo{Status: &nodevisor.Status{State: "installing"}}
		suspended := &rest.ServerInfo{Suspended: true, Status: &nodevisor.Status{State: "running"}}

		So(serverTone(nil), ShouldEqual, toneIdle)
		So(serverTone(stopped), ShouldEqual, toneIdle)
		So(serverTone(&rest.ServerInfo{Status: &nodevisor.Status{State: "stopped"}}), ShouldEqual, toneIdle)
		So(serverTone(running), ShouldEqual, toneUp)
		So(serverTone(installing), ShouldEqual, toneBusy)
		So(serverTone(suspended), ShouldEqual, toneFault)

		Convey("The fleet shows its worst server", func() {
			var fleet tally
			So(fleet.worst(), ShouldEqual, toneIdle)
			fleet.add(stopped)
			fleet.add(running)
			So(fleet.worst(), ShouldEqual, toneUp)
			fleet.add(installing)
			So(fleet.worst(), ShouldEqual, toneBusy)
			fleet.add(suspended)
			So(fleet.worst(), ShouldEqual, toneFault)
			So(fleet, ShouldResemble, tally{1, 1, 1, 1})
		})

		Convey("The status line takes the tone's colors", func() {
			sb := newStatusBar()
			sb.show(toneBusy, "installing")
			So(sb.tone, ShouldEqual, toneBusy)
			So(sb.text, ShouldEqual, "installing")
			sb.show(toneFault, "installing")
			So(sb.tone, ShouldEqual, toneFault)
		})
	})
}
