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

package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/nodevisor/nodevisor"
)

const echoScript = "echo \"listening on $PORT\"\nwhile read line; do echo \"got $line\"; done\n"

func eventually(fn func() bool) bool {
	for end := time.Now().Add(5 * time.Second); time.Now().Before(end); {
		if fn() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func logHas(c *Client, id, text string) bool {
	li, e := c.GetLog(context.Background(), id)
	if e != nil {
		return false
	}
	for _, l := range li.Records {
		if strings.Contains(l.Text, text) {
			return true
		}
	}
	return false
}

// readUntil reads console messages until one carries a line containing text.
func readUntil(conn *websocket.Conn, text string) bool {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg nodevisor.Message
		if e := conn.ReadJSON(&msg); e != nil {
			return false
		}
		if msg.Line != nil && strings.Contains(msg.Line.Text, text) {
			return true
		}
	}
}

func TestRunningServer(t *testing.T) {
	Convey("Given a running server", t,
		WithAPI(t, func(m *nodevisor.Manager, ts *httptest.Server) {
			ctx := context.Background()
			c := clientFor(ts, "alice")
			si, e := c.CreateServer(ctx, "app")
			So(e, ShouldBeNil)
			So(c.WriteFile(ctx, si.ID, "index.js", []byte(echoScript)), ShouldBeNil)
			_, e = c.SetStartup(ctx, si.ID, map[string]string{"port": "4242"})
			So(e, ShouldBeNil)

			So(c.StartServer(ctx, si.ID), ShouldBeNil)
			So(eventually(func() bool {
				st, e := c.Status(ctx, si.ID)
				return e == nil && st.State == "running"
			}), ShouldBeTrue)
			So(eventually(func() bool { return logHas(c, si.ID, "listening on 4242") }), ShouldBeTrue)

			Convey("Starting again conflicts", func() {
				So(statusOf(c.StartServer(ctx, si.ID)), ShouldEqual, http.StatusConflict)
			})

			Convey("It reports a pid", func() {
				st, e := c.Status(ctx, si.ID)
				So(e, ShouldBeNil)
				So(st.IsRunning, ShouldBeTrue)
				So(st.Pid, ShouldBeGreaterThan, 0)
				So(st.StartTime, ShouldNotBeNil)
			})

			Convey("Input posted over HTTP reaches it", func() {
				So(c.SendInput(ctx, si.ID, "ping"), ShouldBeNil)
				So(eventually(func() bool { return logHas(c, si.ID, "got ping") }), ShouldBeTrue)
			})

			Convey("The log can be polled by etag", func() {
				li, e := c.GetLog(ctx, si.ID)
				So(e, ShouldBeNil)
				So(li.Etag(), ShouldNotBeEmpty)

				wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				done := make(chan *LogInfo, 1)
				go func() {
					nli, _ := c.WatchLog(wctx, si.ID, li)
					done <- nli
				}()
				time.Sleep(100 * time.Millisecond)
				So(c.SendInput(ctx, si.ID, "later"), ShouldBeNil)

				var nli *LogInfo
				select {
				case nli = <-done:
				case <-time.After(5 * time.Second):
				}
				So(nli, ShouldNotBeNil)
				So(nli.Etag(), ShouldNotEqual, li.Etag())
			})

			Convey("A websocket viewer gets history and live lines", func() {
				conn, e := c.AttachConsole(ctx, si.ID)
				So(e, ShouldBeNil)
				defer conn.Close()

				var hist nodevisor.Message
				conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				So(conn.ReadJSON(&hist), ShouldBeNil)
				So(hist.Type, ShouldEqual, nodevisor.MessageHistory)
				So(len(hist.Lines), ShouldBeGreaterThan, 0)

				So(eventually(func() bool {
					st, e := c.Status(ctx, si.ID)
					return e == nil && st.Viewers == 1
				}), ShouldBeTrue)

				So(conn.WriteJSON(&InputRequest{Type: "input", Line: "hello"}), ShouldBeNil)
				So(readUntil(conn, "got hello"), ShouldBeTrue)
			})

			Convey("Viewers from other origins are refused", func() {
				hdr := http.Header{}
				hdr.Set("Origin", "http://elsewhere.example")
				req, _ := http.NewRequest("GET", "/", nil)
				req.SetBasicAuth("alice", "pw-alice")
				hdr.Set("Authorization", req.Header.Get("Authorization"))
				u := "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/servers/" + si.ID + "/console"
				_, res, e := websocket.DefaultDialer.Dial(u, hdr)
				So(e, ShouldNotBeNil)
				So(res, ShouldNotBeNil)
				So(res.StatusCode, ShouldEqual, http.StatusForbidden)
			})

			Convey("Stopping it over HTTP", func() {
				So(c.StopServer(ctx, si.ID), ShouldBeNil)
				So(eventually(func() bool {
					st, e := c.Status(ctx, si.ID)
					return e == nil && st.State == "stopped" && !st.IsRunning
				}), ShouldBeTrue)
				So(logHas(c, si.ID, "Server stopped"), ShouldBeTrue)
			})

			Convey("Deleting it while running stops it", func() {
				So(c.DeleteServer(ctx, si.ID), ShouldBeNil)
				So(m.Registry().Len(), ShouldEqual, 0)
			})
		}))
}
