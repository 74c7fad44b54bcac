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

//go:build !windows

// These tests run /bin/sh in place of the Node.js runtime, so they are
// specific to POSIX systems.

package nodevisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type lineSink struct {
	lines []string
	sync.Mutex
}

func (ls *lineSink) emit(s string) {
	ls.Lock()
	ls.lines = append(ls.lines, s)
	ls.Unlock()
}

func (ls *lineSink) has(s string) bool {
	ls.Lock()
	defer ls.Unlock()
	for _, l := range ls.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

// waitFor polls cond for up to five seconds.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func writeScript(t *testing.T, body string) string {
	dir := t.TempDir()
	if e := os.WriteFile(filepath.Join(dir, "index.js"), []byte(body), 0o644); e != nil {
		t.Fatal(e)
	}
	return dir
}

func TestProcessOutput(t *testing.T) {
	Convey("A process reports its output and exit code", t, func() {
		dir := writeScript(t, "echo \"port=$PORT\"\nprintf partial\nexit 3\n")
		ls := &lineSink{}
		p := newProcess("/bin/sh", dir, LaunchConfig{MainFile: "index.js", Port: "4242"}, ls.emit)
		So(p.start(), ShouldBeNil)
		So(p.Pid(), ShouldBeGreaterThan, 0)
		So(p.Wait(5*time.Second), ShouldBeTrue)
		So(p.ExitCode(), ShouldEqual, 3)
		So(ls.has("port=4242"), ShouldBeTrue)
		So(ls.has("partial"), ShouldBeTrue)
		So(p.Input("late"), ShouldNotBeNil)
	})
}

func TestProcessInputAndKill(t *testing.T) {
	Convey("A process reads input until killed", t, func() {
		dir := writeScript(t, "while read line; do echo \"got $line\"; done\n")
		ls := &lineSink{}
		p := newProcess("/bin/sh", dir, LaunchConfig{MainFile: "index.js", Port: "1"}, ls.emit)
		So(p.start(), ShouldBeNil)
		So(p.Input("ping"), ShouldBeNil)
		So(waitFor(func() bool { return ls.has("got ping") }), ShouldBeTrue)
		So(p.Kill(), ShouldBeNil)
		So(p.Wait(5*time.Second), ShouldBeTrue)
		So(p.ExitCode(), ShouldEqual, -1)
		So(p.Kill(), ShouldNotBeNil)
	})
}

func TestProcessSpawnFailure(t *testing.T) {
	Convey("A missing runtime fails to spawn", t, func() {
		p := newProcess("/nonexistent/node", t.TempDir(), LaunchConfig{MainFile: "index.js"}, func(string) {})
		So(p.start(), ShouldNotBeNil)
	})
}

func TestRunCmdWithTimeout(t *testing.T) {
	Convey("Commands are killed at the deadline", t, func() {
		c := exec.Command("/bin/sh", "-c", "sleep 30")
		start := time.Now()
		e := runCmdWithTimeout(c, 100*time.Millisecond)
		So(e, ShouldNotBeNil)
		So(e.Error(), ShouldContainSubstring, "timed out")
		So(time.Since(start), ShouldBeLessThan, 10*time.Second)
	})
	Convey("Installer output is split into lines", t, func() {
		ls := &lineSink{}
		e := installPackages("/bin/echo", t.TempDir(), []string{"left-pad"}, time.Second, ls.emit)
		So(e, ShouldBeNil)
		So(ls.has("install left-pad"), ShouldBeTrue)
	})
}
