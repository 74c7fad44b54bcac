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

func TestServerPermissions(t *testing.T) {
	Convey("Given a new server", t, func() {
		s, e := NewServer("owner", "  My App  ")
		So(e, ShouldBeNil)
		So(s.Name, ShouldEqual, "My App")
		So(s.Startup, ShouldResemble, DefaultStartupSettings())

		Convey("The owner holds every right", func() {
			So(s.PermissionsFor("owner"), ShouldResemble, OwnerPermissions())
			So(s.RemoveUser("owner"), ShouldEqual, ErrOwnerImmutable)
			s.SetUser("owner", Permissions{})
			So(s.Users, ShouldBeEmpty)
		})
		Convey("Strangers hold none", func() {
			So(s.PermissionsFor("bob").Any(), ShouldBeFalse)
			So(s.Allowed(Actor{ID: "bob"}, func(p Permissions) bool { return p.ViewConsole }), ShouldBeFalse)
			So(s.Allowed(Actor{ID: "bob", Admin: true}, func(p Permissions) bool { return p.ViewConsole }), ShouldBeTrue)
		})
		Convey("Granted rights stick until removed", func() {
			s.SetUser("bob", Permissions{ViewConsole: true})
			So(s.PermissionsFor("bob").ViewConsole, ShouldBeTrue)
			So(s.PermissionsFor("bob").EditFiles, ShouldBeFalse)
			So(s.RemoveUser("bob"), ShouldBeNil)
			So(s.PermissionsFor("bob").Any(), ShouldBeFalse)
		})
	})

	Convey("Bad names are refused", t, func() {
		_, e := NewServer("owner", "   ")
		So(e, ShouldEqual, ErrInvalidName)
		_, e = NewServer("owner", "two\nlines")
		So(e, ShouldEqual, ErrInvalidName)
	})
}

func TestStartupSettings(t *testing.T) {
	Convey("Given default settings", t, func() {
		s := DefaultStartupSettings()

		Convey("Ports are validated on update", func() {
			So(s.Set(SettingPort, "0"), ShouldEqual, ErrInvalidPort)
			So(s.Set(SettingPort, "65536"), ShouldEqual, ErrInvalidPort)
			So(s.Set(SettingPort, "http"), ShouldEqual, ErrInvalidPort)
			So(s.Set(SettingPort, "8080"), ShouldBeNil)
			v, _ := s.Get(SettingPort)
			So(v, ShouldEqual, "8080")
		})
		Convey("Unknown names fail", func() {
			So(s.Set(SettingName("cpu"), "1"), ShouldEqual, ErrBadSettingName)
		})
		Convey("Resolve applies defaults and splits packages", func() {
			s.MainFile = ""
			s.Port = ""
			s.Packages = "  express   left-pad\tchalk "
			lc := s.Resolve()
			So(lc.MainFile, ShouldEqual, DefaultMainFile)
			So(lc.Port, ShouldEqual, DefaultPort)
			So(lc.Packages, ShouldResemble, []string{"express", "left-pad", "chalk"})
		})
	})
}
