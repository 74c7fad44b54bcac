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

func TestHub(t *testing.T) {
	Convey("Given a hub", t, func() {
		h := NewHub()
		k1 := Key{OwnerID: "a", ServerID: "1"}
		k2 := Key{OwnerID: "a", ServerID: "2"}

		Convey("Messages go only to viewers of the key", func() {
			s1 := h.Subscribe(k1)
			s2 := h.Subscribe(k2)
			defer s1.Close()
			defer s2.Close()
			h.Publish(k1, Message{Type: MessageClear})
			So(len(s1.C), ShouldEqual, 1)
			So(len(s2.C), ShouldEqual, 0)
			So(h.Count(k1), ShouldEqual, 1)
		})

		Convey("Close is idempotent and closes the channel", func() {
			s := h.Subscribe(k1)
			s.Close()
			s.Close()
			_, ok := <-s.C
			So(ok, ShouldBeFalse)
			So(h.Count(k1), ShouldEqual, 0)
		})

		Convey("A slow viewer is detached instead of losing messages", func() {
			s := h.Subscribe(k1)
			fast := h.Subscribe(k1)
			defer fast.Close()
			for i := 0; i < subscriptionDepth; i++ {
				h.Publish(k1, Message{Type: MessageLine})
				<-fast.C
			}
			So(s.Overflowed(), ShouldBeFalse)
			h.Publish(k1, Message{Type: MessageClear})
			So(s.Overflowed(), ShouldBeTrue)
			So(h.Count(k1), ShouldEqual, 1)
			So(len(fast.C), ShouldEqual, 1)

			n := 0
			for msg := range s.C {
				So(msg.Type, ShouldEqual, MessageLine)
				n++
			}
			So(n, ShouldEqual, subscriptionDepth)

			// Further messages never reach it.
			h.Publish(k1, Message{Type: MessageLine})
			So(len(fast.C), ShouldEqual, 2)
		})

		Convey("CloseAll detaches everyone", func() {
			s1 := h.Subscribe(k1)
			s2 := h.Subscribe(k1)
			h.CloseAll(k1)
			_, ok1 := <-s1.C
			_, ok2 := <-s2.C
			So(ok1, ShouldBeFalse)
			So(ok2, ShouldBeFalse)
			So(h.Count(k1), ShouldEqual, 0)
		})
	})
}
