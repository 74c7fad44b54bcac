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

package rest

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nodevisor/nodevisor"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts non-browser clients and pages served from this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, e := url.Parse(origin)
	return e == nil && u.Host == r.Host
}

// console attaches a viewer to a server's console.  The viewer first
// receives the history, then every line, clear, and state change as
// they happen.  Frames the viewer sends are treated as input.
func (h *Handler) console(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, viewConsole)
	if !found {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	key := srv.Key()
	history, sub := h.m.Console().Attach(key)
	defer sub.Close()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(nodevisor.Message{Type: nodevisor.MessageHistory, Lines: history}); err != nil {
		return
	}

	go h.readInput(conn, key, sub)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, open := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				// A viewer that fell behind reconnects for fresh history.
				code := websocket.CloseNormalClosure
				if sub.Overflowed() {
					code = websocket.CloseTryAgainLater
				}
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readInput forwards input frames until the connection goes away, then
// detaches the subscription so the writer exits too.
func (h *Handler) readInput(conn *websocket.Conn, key nodevisor.Key, sub *nodevisor.Subscription) {
	defer sub.Close()
	conn.SetReadLimit(maxFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var req InputRequest
		if err := conn.ReadJSON(&req); err != nil {
			h.logger.Debug("console viewer left", zap.String("server", key.String()), zap.Error(err))
			return
		}
		if req.Type == "" || req.Type == "input" {
			h.m.SendInput(key, req.Line)
		}
	}
}
