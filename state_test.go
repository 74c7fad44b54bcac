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
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTransitions(t *testing.T) {
	Convey("The lifecycle state machine", t, func() {
		Convey("The happy path", func() {
			s, e := next(StateStopped, trigStart)
			So(e, ShouldBeNil)
			So(s, ShouldEqual, StatePreparing)
			s, _ = next(s, trigInstall)
			So(s, ShouldEqual, StateInstalling)
			s, _ = next(s, trigSpawn)
			So(s, ShouldEqual, StateRunning)
			s, _ = next(s, trigStop)
			So(s, ShouldEqual, StateStopping)
			s, _ = next(s, trigReap)
			So(s, ShouldEqual, StateStopped)
		})
		Convey("Kill is a fast path", func() {
			s, _ := next(StateRunning, trigKill)
			So(s, ShouldEqual, StateKilled)
			s, _ = next(s, trigReap)
			So(s, ShouldEqual, StateStopped)
		})
		Convey("Only a stopped server starts", func() {
			_, e := next(StateRunning, trigStart)
			So(e, ShouldEqual, ErrAlreadyRunning)
			_, e = next(StateInstalling, trigStart)
			So(e, ShouldEqual, ErrBusy)
			_, e = next(StateStopped, trigStop)
			So(errors.Is(e, ErrBusy), ShouldBeTrue)
		})
		Convey("Names", func() {
			So(StateInstalling.String(), ShouldEqual, "installing")
			So(StateRunning.Busy(), ShouldBeFalse)
			So(StateKilled.Busy(), ShouldBeTrue)
		})
	})
}
