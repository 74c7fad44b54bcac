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
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogEviction(t *testing.T) {
	Convey("Given a log of five lines", t, func() {
		log := NewLog(5)
		for i := 0; i < 12; i++ {
			log.Append(NewLine(SeverityInfo, fmt.Sprintf("line %d", i)))
		}

		Convey("Only the newest survive, in order", func() {
			So(log.Len(), ShouldEqual, 5)
			recs := log.Recent(0)
			So(len(recs), ShouldEqual, 5)
			for i, r := range recs {
				So(r.Text, ShouldEqual, fmt.Sprintf("line %d", i+7))
			}
		})
		Convey("A limit takes the newest", func() {
			recs := log.Recent(2)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Text, ShouldEqual, "line 10")
			So(recs[1].Text, ShouldEqual, "line 11")
		})
		Convey("Ids increase", func() {
			recs := log.Recent(0)
			for i := 1; i < len(recs); i++ {
				So(recs[i].ID, ShouldBeGreaterThan, recs[i-1].ID)
			}
		})
	})
}

func TestLogEtag(t *testing.T) {
	Convey("Given a log with a record", t, func() {
		log := NewLog(0)
		log.Append(NewLine(SeverityInfo, "one"))
		recs, id := log.GetRecords(0)
		So(len(recs), ShouldEqual, 1)

		Convey("An unchanged etag returns nothing", func() {
			recs, id2 := log.GetRecords(id)
			So(recs, ShouldBeNil)
			So(id2, ShouldEqual, id)
		})
		Convey("Watch wakes on append", func() {
			go func() {
				time.Sleep(20 * time.Millisecond)
				log.Append(NewLine(SeverityInfo, "two"))
			}()
			So(log.Watch(id, 5*time.Second), ShouldNotEqual, id)
		})
		Convey("Watch expires", func() {
			So(log.Watch(id, 20*time.Millisecond), ShouldEqual, id)
		})
		Convey("Clear empties and moves the etag", func() {
			log.Clear()
			So(log.Len(), ShouldEqual, 0)
			So(log.ID(), ShouldNotEqual, id)
		})
	})
}
