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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConsole(t *testing.T) {
	Convey("Given a console over a memory store", t, func() {
		ctx := context.Background()
		st := NewMemoryStore()
		hub := NewHub()
		c := NewConsole(st, hub, nil)
		key := Key{OwnerID: "o", ServerID: "s"}

		Convey("Appends reach memory, store and viewers", func() {
			sub := hub.Subscribe(key)
			defer sub.Close()
			c.Printf(key, SeverityInfo, "hello %d", 1)
			So(c.Recent(key, 10)[0].Text, ShouldEqual, "hello 1")
			c.Flush()
			stored, e := st.RecentLines(ctx, key, 10)
			So(e, ShouldBeNil)
			So(len(stored), ShouldEqual, 1)
			m := <-sub.C
			So(m.Type, ShouldEqual, MessageLine)
			So(m.Line.Text, ShouldEqual, "hello 1")
		})

		Convey("Clear empties both and tells viewers", func() {
			c.Printf(key, SeverityInfo, "old")
			sub := hub.Subscribe(key)
			defer sub.Close()
			c.Clear(key)
			So(c.Recent(key, 0), ShouldBeEmpty)
			c.Flush()
			stored, _ := st.RecentLines(ctx, key, 0)
			So(stored, ShouldBeEmpty)
			So((<-sub.C).Type, ShouldEqual, MessageClear)
		})

		Convey("A new console hydrates from the store", func() {
			for i := 0; i < 3; i++ {
				st.AppendLines(ctx, key, []Line{NewLine(SeverityInfo, fmt.Sprintf("l%d", i))})
			}
			recs := c.Recent(key, 2)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Text, ShouldEqual, "l1")
			So(recs[1].Text, ShouldEqual, "l2")
		})

		Convey("Attach neither misses nor repeats", func() {
			c.Printf(key, SeverityInfo, "before")
			hist, sub := c.Attach(key)
			defer sub.Close()
			c.Printf(key, SeverityInfo, "after")
			So(len(hist), ShouldEqual, 1)
			So(hist[0].Text, ShouldEqual, "before")
			m := <-sub.C
			So(m.Line.Text, ShouldEqual, "after")
			So(len(sub.C), ShouldEqual, 0)
		})

		Convey("A viewer that falls behind is detached without gaps", func() {
			hist, sub := c.Attach(key)
			So(hist, ShouldBeEmpty)
			for i := 0; i < subscriptionDepth+44; i++ {
				c.Printf(key, SeverityInfo, "n%d", i)
			}
			So(sub.Overflowed(), ShouldBeTrue)
			n := 0
			for m := range sub.C {
				So(m.Line.Text, ShouldEqual, fmt.Sprintf("n%d", n))
				n++
			}
			So(n, ShouldEqual, subscriptionDepth)
			So(hub.Count(key), ShouldEqual, 0)

			hist, again := c.Attach(key)
			defer again.Close()
			So(len(hist), ShouldEqual, subscriptionDepth+44)
			So(again.Overflowed(), ShouldBeFalse)
		})

		Convey("A slow store holds up neither appends nor other servers", func() {
			slow := &stallStore{MemoryStore: st, stall: key, release: make(chan struct{})}
			c := NewConsole(slow, hub, nil)
			other := Key{OwnerID: "o", ServerID: "t"}
			c.Printf(key, SeverityInfo, "first")
			c.Printf(key, SeverityInfo, "second")
			c.Printf(other, SeverityInfo, "theirs")
			So(len(c.Recent(key, 0)), ShouldEqual, 2)

			var theirs []Line
			for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
				if theirs, _ = st.RecentLines(ctx, other, 0); len(theirs) != 0 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(len(theirs), ShouldEqual, 1)
			mine, _ := st.RecentLines(ctx, key, 0)
			So(mine, ShouldBeEmpty)

			close(slow.release)
			c.Flush()
			mine, _ = st.RecentLines(ctx, key, 0)
			So(len(mine), ShouldEqual, 2)
			So(mine[1].Text, ShouldEqual, "second")
		})

		Convey("Servers do not share a console", func() {
			other := Key{OwnerID: "o", ServerID: "t"}
			c.Printf(key, SeverityInfo, "mine")
			So(c.Recent(other, 0), ShouldBeEmpty)
		})

		Convey("The store keeps more than memory", func() {
			for i := 0; i < MaxLogRecords+10; i++ {
				c.Printf(key, SeverityInfo, "n%d", i)
			}
			So(len(c.Recent(key, 0)), ShouldEqual, MaxLogRecords)
			c.Flush()
			stored, _ := st.RecentLines(ctx, key, 0)
			So(len(stored), ShouldEqual, MaxLogRecords+10)
			last := c.Recent(key, 1)[0]
			So(last.Text, ShouldEqual, fmt.Sprintf("n%d", MaxLogRecords+9))
		})
	})
}

// stallStore holds writes for one key until release is closed.
type stallStore struct {
	*MemoryStore
	stall   Key
	release chan struct{}
}

func (s *stallStore) AppendLines(ctx context.Context, key Key, lines []Line) error {
	if key == s.stall {
		<-s.release
	}
	return s.MemoryStore.AppendLines(ctx, key, lines)
}
