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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("With no file, defaults apply", t, func() {
		t.Setenv(EnvFile, "")
		c, e := Load("")
		So(e, ShouldBeNil)
		So(c.Listen, ShouldEqual, DefaultListen)
		So(c.MaxConns, ShouldEqual, DefaultMaxConns)
		So(c.Database, ShouldEqual, DefaultDatabase)
		So(c.Runtime.Node, ShouldEqual, "node")
		So(c.Runtime.WorkDir, ShouldEqual, "./data/work")
		So(c.Runtime.InstallTimeout, ShouldEqual, 5*time.Minute)
		So(c.Runtime.StopGrace, ShouldEqual, 2*time.Second)
		So(c.LogLevel, ShouldEqual, "info")
	})
}

func TestParse(t *testing.T) {
	Convey("Values in the file override defaults", t, func() {
		c, e := Parse([]byte(`
[server]
listen = :9000

[runtime]
node = /usr/local/bin/node
install_timeout = 90s

[log]
level = debug
development = true
`))
		So(e, ShouldBeNil)
		So(c.Listen, ShouldEqual, ":9000")
		So(c.MaxConns, ShouldEqual, DefaultMaxConns)
		So(c.Runtime.Node, ShouldEqual, "/usr/local/bin/node")
		So(c.Runtime.Npm, ShouldEqual, "npm")
		So(c.Runtime.InstallTimeout, ShouldEqual, 90*time.Second)
		So(c.Development, ShouldBeTrue)

		l, e := c.Logger()
		So(e, ShouldBeNil)
		So(l, ShouldNotBeNil)
	})
	Convey("Bad values are rejected", t, func() {
		_, e := Parse([]byte("[log]\nlevel = chatty\n"))
		So(e, ShouldNotBeNil)
		_, e = Parse([]byte("[server]\nmax_conns = -1\n"))
		So(e, ShouldNotBeNil)
	})
}

func TestEnvFile(t *testing.T) {
	Convey("The environment selects the file", t, func() {
		name := filepath.Join(t.TempDir(), "nodevisor.ini")
		So(os.WriteFile(name, []byte("[database]\npath = /tmp/x.db\n"), 0600), ShouldBeNil)
		t.Setenv(EnvFile, name)
		c, e := Load("")
		So(e, ShouldBeNil)
		So(c.Database, ShouldEqual, "/tmp/x.db")

		Convey("A missing file is an error", func() {
			_, e := Load(filepath.Join(t.TempDir(), "missing.ini"))
			So(e, ShouldNotBeNil)
		})
	})
}
