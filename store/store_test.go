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

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nodevisor/nodevisor"
)

func WithDB(t *testing.T, fn func(db *SQLite)) func() {
	return func() {
		db, err := Open(filepath.Join(t.TempDir(), "sub", "test.db"))
		So(err, ShouldBeNil)
		Reset(func() {
			db.Close()
		})
		fn(db)
	}
}

func TestServers(t *testing.T) {
	Convey("Server records", t, WithDB(t, func(db *SQLite) {
		ctx := context.Background()
		srv, err := nodevisor.NewServer("alice", "web")
		So(err, ShouldBeNil)
		So(srv.Files.Write("src/index.js", []byte("console.log(1)")), ShouldBeNil)
		srv.SetUser("bob", nodevisor.Permissions{ViewConsole: true})
		So(db.SaveServer(ctx, srv), ShouldBeNil)

		Convey("Round trip", func() {
			got, err := db.GetServer(ctx, srv.ID)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "web")
			So(got.Files.Paths(), ShouldResemble, []string{"src/index.js"})
			So(got.Users["bob"].ViewConsole, ShouldBeTrue)
			So(got.Startup, ShouldResemble, nodevisor.DefaultStartupSettings())
			So(got.CreatedAt.Equal(srv.CreatedAt), ShouldBeTrue)
		})
		Convey("Upsert replaces", func() {
			srv.Name = "api"
			srv.Suspended = true
			So(db.SaveServer(ctx, srv), ShouldBeNil)
			got, _ := db.GetServer(ctx, srv.ID)
			So(got.Name, ShouldEqual, "api")
			So(got.Suspended, ShouldBeTrue)
		})
		Convey("Listing filters by owner", func() {
			other, _ := nodevisor.NewServer("carol", "db")
			So(db.SaveServer(ctx, other), ShouldBeNil)
			all, err := db.ListServers(ctx, "")
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 2)
			mine, _ := db.ListServers(ctx, "alice")
			So(len(mine), ShouldEqual, 1)
		})
		Convey("Deleted servers are gone", func() {
			So(db.DeleteServer(ctx, srv.ID), ShouldBeNil)
			_, err := db.GetServer(ctx, srv.ID)
			So(err, ShouldEqual, nodevisor.ErrServerNotFound)
		})
	}))
}

func TestProcessState(t *testing.T) {
	Convey("Process state", t, WithDB(t, func(db *SQLite) {
		ctx := context.Background()
		key := nodevisor.Key{OwnerID: "o", ServerID: "s"}

		st, err := db.GetState(ctx, key)
		So(err, ShouldBeNil)
		So(st.IsRunning, ShouldBeFalse)
		So(st.StartTime, ShouldBeNil)

		now := time.Now()
		So(db.SetState(ctx, key, nodevisor.ProcessState{IsRunning: true, StartTime: &now}), ShouldBeNil)
		st, _ = db.GetState(ctx, key)
		So(st.IsRunning, ShouldBeTrue)
		So(st.StartTime.Equal(now), ShouldBeTrue)

		keys, err := db.RunningKeys(ctx)
		So(err, ShouldBeNil)
		So(keys, ShouldResemble, []nodevisor.Key{key})

		So(db.ClearState(ctx, key), ShouldBeNil)
		keys, _ = db.RunningKeys(ctx)
		So(keys, ShouldBeEmpty)
	}))
}

func TestConsoleLines(t *testing.T) {
	Convey("Console lines", t, WithDB(t, func(db *SQLite) {
		ctx := context.Background()
		key := nodevisor.Key{OwnerID: "o", ServerID: "s"}
		other := nodevisor.Key{OwnerID: "o", ServerID: "t"}

		Convey("Are capped, oldest first out", func() {
			n := nodevisor.MaxStoredLines + 3
			for i := 0; i < n; i++ {
				line := nodevisor.NewLine(nodevisor.SeverityWarn, fmt.Sprintf("l%d", i))
				So(db.AppendLines(ctx, key, []nodevisor.Line{line}), ShouldBeNil)
			}
			all, err := db.RecentLines(ctx, key, 0)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, nodevisor.MaxStoredLines)
			So(all[0].Text, ShouldEqual, "l3")
			So(all[len(all)-1].Text, ShouldEqual, fmt.Sprintf("l%d", n-1))
			So(all[0].Severity, ShouldEqual, nodevisor.SeverityWarn)

			last, _ := db.RecentLines(ctx, key, 2)
			So(len(last), ShouldEqual, 2)
			So(last[1].Text, ShouldEqual, fmt.Sprintf("l%d", n-1))
		})
		Convey("A batch larger than the cap keeps its newest lines", func() {
			batch := make([]nodevisor.Line, nodevisor.MaxStoredLines+2)
			for i := range batch {
				batch[i] = nodevisor.NewLine(nodevisor.SeverityInfo, fmt.Sprintf("b%d", i))
			}
			So(db.AppendLines(ctx, key, batch[:1]), ShouldBeNil)
			So(db.AppendLines(ctx, key, batch[1:]), ShouldBeNil)
			So(db.AppendLines(ctx, key, nil), ShouldBeNil)
			all, _ := db.RecentLines(ctx, key, 0)
			So(len(all), ShouldEqual, nodevisor.MaxStoredLines)
			So(all[0].Text, ShouldEqual, "b2")
			So(all[len(all)-1].Text, ShouldEqual, fmt.Sprintf("b%d", len(batch)-1))
		})
		Convey("Clear only touches one server", func() {
			So(db.AppendLines(ctx, key, []nodevisor.Line{nodevisor.NewLine(0, "a")}), ShouldBeNil)
			So(db.AppendLines(ctx, other, []nodevisor.Line{nodevisor.NewLine(0, "b")}), ShouldBeNil)
			So(db.ClearLines(ctx, key), ShouldBeNil)
			mine, _ := db.RecentLines(ctx, key, 0)
			So(mine, ShouldBeEmpty)
			theirs, _ := db.RecentLines(ctx, other, 0)
			So(len(theirs), ShouldEqual, 1)
		})
	}))
}

func TestAccountsAndEvents(t *testing.T) {
	Convey("Accounts and events", t, WithDB(t, func(db *SQLite) {
		ctx := context.Background()
		a := &nodevisor.Account{ID: "id1", Name: "alice", PasswordHash: "x", Admin: true, CreatedAt: time.Now()}
		So(db.SaveAccount(ctx, a), ShouldBeNil)

		got, err := db.GetAccountByName(ctx, "alice")
		So(err, ShouldBeNil)
		So(got.ID, ShouldEqual, "id1")
		So(got.Admin, ShouldBeTrue)
		_, err = db.GetAccount(ctx, "nope")
		So(err, ShouldEqual, nodevisor.ErrAccountNotFound)

		ev := nodevisor.Event{Time: time.Now(), Name: "server.start", Details: map[string]string{"server": "s"}}
		So(db.RecordEvent(ctx, ev), ShouldBeNil)
		evs, err := db.RecentEvents(ctx, 10)
		So(err, ShouldBeNil)
		So(len(evs), ShouldEqual, 1)
		So(evs[0].Details["server"], ShouldEqual, "s")
	}))
}

func TestManagerOnSQLite(t *testing.T) {
	Convey("The manager persists through SQLite", t, WithDB(t, func(db *SQLite) {
		ctx := context.Background()
		m := nodevisor.NewManager(db)
		srv, err := m.CreateServer(ctx, nodevisor.Actor{ID: "alice"}, "web")
		So(err, ShouldBeNil)
		m.Console().Printf(srv.Key(), nodevisor.SeverityInfo, "hello")
		m.Console().Flush()

		fresh := nodevisor.NewManager(db)
		recs := fresh.Console().Recent(srv.Key(), 10)
		So(len(recs), ShouldEqual, 1)
		So(recs[0].Text, ShouldEqual, "hello")
	}))
}
