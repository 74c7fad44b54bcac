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
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Severity heuristics", t, func() {
		So(Classify("Server listening on 3000"), ShouldEqual, SeveritySuccess)
		So(Classify("Erro ao conectar"), ShouldEqual, SeverityError)
		So(Classify("npm WARN deprecated"), ShouldEqual, SeverityWarn)
		So(Classify("Error: listen EADDRINUSE"), ShouldEqual, SeverityError)
		So(Classify("AVISO: memória baixa"), ShouldEqual, SeverityWarn)
		So(Classify("hello"), ShouldEqual, SeverityInfo)

		Convey("Errors win over everything else", func() {
			So(Classify("warning: startup failed"), ShouldEqual, SeverityError)
		})
	})
}

func TestLineFormat(t *testing.T) {
	Convey("Lines keep time, severity and text", t, func() {
		l := FormatLine("boom: fatal\r\n")
		So(l.Text, ShouldEqual, "boom: fatal")
		So(l.Severity, ShouldEqual, SeverityError)

		l.Time = time.Date(2024, 1, 2, 13, 4, 5, 0, time.Local)
		So(l.String(), ShouldEqual, "[13:04:05] [ERROR] boom: fatal")

		b, e := json.Marshal(l)
		So(e, ShouldBeNil)
		So(string(b), ShouldContainSubstring, `"severity":"error"`)
	})
}
