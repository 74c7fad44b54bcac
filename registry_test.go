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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	Convey("Given a registry", t, func() {
		r := NewRegistry()
		key := Key{OwnerID: "o", ServerID: "s"}
		p1 := &Process{}
		p2 := &Process{}

		Convey("A key holds one handle", func() {
			So(r.Set(key, p1), ShouldBeNil)
			So(r.Set(key, p2), ShouldEqual, ErrAlreadyRunning)
			So(r.Get(key), ShouldEqual, p1)
			So(r.Len(), ShouldEqual, 1)
		})
		Convey("DeleteIf only removes the matching handle", func() {
			So(r.Set(key, p1), ShouldBeNil)
			So(r.DeleteIf(key, p2), ShouldBeFalse)
			So(r.Get(key), ShouldEqual, p1)
			So(r.DeleteIf(key, p1), ShouldBeTrue)
			So(r.Get(key), ShouldBeNil)
		})
		Convey("Keys of different owners do not collide", func() {
			So(r.Set(Key{OwnerID: "a", ServerID: "b/c"}, p1), ShouldBeNil)
			So(r.Set(Key{OwnerID: "a/b", ServerID: "c"}, p2), ShouldBeNil)
			So(r.Len(), ShouldEqual, 2)
			So(r.Delete(Key{OwnerID: "a/b", ServerID: "c"}), ShouldEqual, p2)
			So(r.Keys(), ShouldResemble, []Key{{OwnerID: "a", ServerID: "b/c"}})
		})
	})
}
