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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nodevisor/nodevisor"
)

// maxBody bounds request bodies, uploaded files included.
const maxBody = 16 << 20

type ctxKey int

const actorKey ctxKey = 0

type permCheck func(nodevisor.Permissions) bool

var (
	anyRight     permCheck = nodevisor.Permissions.Any
	viewConsole  permCheck = func(p nodevisor.Permissions) bool { return p.ViewConsole }
	viewFiles    permCheck = func(p nodevisor.Permissions) bool { return p.ViewFiles }
	editFiles    permCheck = func(p nodevisor.Permissions) bool { return p.EditFiles }
	editSettings permCheck = func(p nodevisor.Permissions) bool { return p.EditSettings }
	viewUsers    permCheck = func(p nodevisor.Permissions) bool { return p.ViewUsers }
	editUsers    permCheck = func(p nodevisor.Permissions) bool { return p.EditUsers }
	viewStartup  permCheck = func(p nodevisor.Permissions) bool { return p.ViewStartup }
	editStartup  permCheck = func(p nodevisor.Permissions) bool { return p.EditStartup }
)

// Handler serves the nodevisor API.
type Handler struct {
	m      *nodevisor.Manager
	r      *mux.Router
	logger *zap.Logger
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

// fail reports err to the client, logging it if it is unexpected.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	e := toError(err)
	if e.Code == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.writeError(w, e)
}

func (h *Handler) readJson(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if e := json.NewDecoder(r.Body).Decode(v); e != nil {
		h.writeError(w, &Error{http.StatusBadRequest, "Malformed request body"})
		return false
	}
	return true
}

func actorOf(r *http.Request) nodevisor.Actor {
	a, _ := r.Context().Value(actorKey).(nodevisor.Actor)
	return a
}

// pollArgs returns the etag and wait time of a long-poll request.
func pollArgs(r *http.Request) (int64, time.Duration, bool) {
	tag := r.Header.Get(PollEtagHeader)
	if tag == "" {
		return 0, 0, false
	}
	last, e := strconv.ParseInt(tag, 10, 64)
	if e != nil {
		return 0, 0, false
	}
	secs, _ := strconv.Atoi(r.Header.Get(PollTimeHeader))
	wait := time.Duration(secs) * time.Second
	if wait > maxPollTime {
		wait = maxPollTime
	}
	return last, wait, true
}

// notModified reports whether the client already holds etag.
func notModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("Etag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name, pass, ok := r.BasicAuth(); ok {
			acct, err := h.m.Store().GetAccountByName(r.Context(), name)
			if err != nil && !errors.Is(err, nodevisor.ErrAccountNotFound) {
				h.fail(w, err)
				return
			}
			if err == nil && bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(pass)) == nil {
				ctx := context.WithValue(r.Context(), actorKey, acct.Actor())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="nodevisor"`)
		h.writeError(w, &Error{http.StatusUnauthorized, "Authentication required"})
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	return hj.Hijack()
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		next.ServeHTTP(sw, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.code),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// lookup loads the server named in the route, making sure the caller
// passes check.  Servers the caller has no rights on at all are reported
// as missing.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, check permCheck) (*nodevisor.Server, bool) {
	a := actorOf(r)
	srv, err := h.m.GetServer(r.Context(), mux.Vars(r)["server"])
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	if !srv.Allowed(a, anyRight) {
		h.fail(w, nodevisor.ErrServerNotFound)
		return nil, false
	}
	if !srv.Allowed(a, check) {
		h.fail(w, nodevisor.ErrPermission)
		return nil, false
	}
	return srv, true
}

func (h *Handler) info(ctx context.Context, a nodevisor.Actor, srv *nodevisor.Server) *ServerInfo {
	perms := srv.PermissionsFor(a.ID)
	if a.Admin {
		perms = nodevisor.OwnerPermissions()
	}
	si := &ServerInfo{
		ID:          srv.ID,
		Name:        srv.Name,
		OwnerID:     srv.OwnerID,
		Suspended:   srv.Suspended,
		Permissions: perms,
		CreatedAt:   srv.CreatedAt,
		UpdatedAt:   srv.UpdatedAt,
	}
	if perms.ViewStartup {
		st := srv.Startup
		si.Startup = &st
	}
	if perms.ViewConsole {
		if st, err := h.m.Status(ctx, srv.Key()); err == nil {
			si.Status = st
		}
	}
	return si
}

func (h *Handler) getInfo(w http.ResponseWriter, r *http.Request) {
	serial := h.m.Serial()
	if last, wait, ok := pollArgs(r); ok {
		serial = h.m.WatchSerial(last, wait)
	}
	if notModified(w, r, strconv.FormatInt(serial, 10)) {
		return
	}
	h.writeJson(w, h.m.GetInfo())
}

func (h *Handler) listServers(w http.ResponseWriter, r *http.Request) {
	a := actorOf(r)
	list, err := h.m.Servers(r.Context(), a)
	if err != nil {
		h.fail(w, err)
		return
	}
	rv := make([]*ServerInfo, 0, len(list))
	for _, srv := range list {
		rv = append(rv, h.info(r.Context(), a, srv))
	}
	h.writeJson(w, rv)
}

func (h *Handler) createServer(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !h.readJson(w, r, &req) {
		return
	}
	a := actorOf(r)
	if srv, err := h.m.CreateServer(r.Context(), a, req.Name); err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, h.info(r.Context(), a, srv))
	}
}

func (h *Handler) getServer(w http.ResponseWriter, r *http.Request) {
	if srv, ok := h.lookup(w, r, anyRight); ok {
		h.writeJson(w, h.info(r.Context(), actorOf(r), srv))
	}
}

func (h *Handler) deleteServer(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, anyRight)
	if !found {
		return
	}
	a := actorOf(r)
	if !a.Admin && a.ID != srv.OwnerID {
		h.fail(w, nodevisor.ErrPermission)
	} else if err := h.m.DeleteServer(r.Context(), a, srv.Key()); err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) renameServer(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, editSettings)
	if !found {
		return
	}
	var req NameRequest
	if !h.readJson(w, r, &req) {
		return
	}
	a := actorOf(r)
	if srv, err := h.m.RenameServer(r.Context(), a, srv.ID, req.Name); err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, h.info(r.Context(), a, srv))
	}
}

func (h *Handler) suspendServer(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, anyRight)
	if !found {
		return
	}
	suspend := mux.Vars(r)["action"] == "suspend"
	if _, err := h.m.SetSuspended(r.Context(), actorOf(r), srv.ID, suspend); err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, viewFiles)
	if !found {
		return
	}
	dir := r.URL.Query().Get("path")
	if !srv.Files.IsDir(dir) {
		h.fail(w, nodevisor.ErrNotFound)
		return
	}
	h.writeJson(w, srv.Files.ListChildren(dir))
}

func (h *Handler) readFile(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, viewFiles)
	if !found {
		return
	}
	b, err := srv.Files.Read(r.URL.Query().Get("path"))
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(b)
}

// editTree applies fn to the file tree of the server in the route.
func (h *Handler) editTree(w http.ResponseWriter, r *http.Request, event string, fn func(nodevisor.Files) error) {
	srv, found := h.lookup(w, r, editFiles)
	if !found {
		return
	}
	_, err := h.m.UpdateServer(r.Context(), actorOf(r), srv.ID, event, func(s *nodevisor.Server) error {
		return fn(s.Files)
	})
	if err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) writeFile(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, &Error{http.StatusBadRequest, err.Error()})
		return
	}
	name := r.URL.Query().Get("path")
	h.editTree(w, r, "file.write", func(f nodevisor.Files) error {
		return f.Write(name, b)
	})
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("path")
	h.editTree(w, r, "file.delete", func(f nodevisor.Files) error {
		return f.Remove(name)
	})
}

func (h *Handler) renameFile(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !h.readJson(w, r, &req) {
		return
	}
	h.editTree(w, r, "file.rename", func(f nodevisor.Files) error {
		return f.Rename(req.From, req.To)
	})
}

// makeDir only validates; empty directories are not stored.
func (h *Handler) makeDir(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, editFiles)
	if !found {
		return
	}
	if err := srv.Files.Mkdir(r.URL.Query().Get("path")); err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) getStartup(w http.ResponseWriter, r *http.Request) {
	if srv, ok := h.lookup(w, r, viewStartup); ok {
		h.writeJson(w, srv.Startup)
	}
}

// putStartup updates any subset of the startup settings.  Either every
// value is valid and all are stored, or nothing changes.
func (h *Handler) putStartup(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, editStartup)
	if !found {
		return
	}
	var req map[string]string
	if !h.readJson(w, r, &req) {
		return
	}
	srv, err := h.m.UpdateServer(r.Context(), actorOf(r), srv.ID, "startup.update", func(s *nodevisor.Server) error {
		for n, v := range req {
			if err := s.Startup.Set(nodevisor.SettingName(n), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, srv.Startup)
	}
}

func (h *Handler) getUsers(w http.ResponseWriter, r *http.Request) {
	if srv, ok := h.lookup(w, r, viewUsers); ok {
		h.writeJson(w, srv.Users)
	}
}

func (h *Handler) putUser(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, editUsers)
	if !found {
		return
	}
	var perms nodevisor.Permissions
	if !h.readJson(w, r, &perms) {
		return
	}
	id := mux.Vars(r)["account"]
	if _, err := h.m.Store().GetAccount(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	_, err := h.m.UpdateServer(r.Context(), actorOf(r), srv.ID, "user.grant", func(s *nodevisor.Server) error {
		s.SetUser(id, perms)
		return nil
	})
	if err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, editUsers)
	if !found {
		return
	}
	id := mux.Vars(r)["account"]
	_, err := h.m.UpdateServer(r.Context(), actorOf(r), srv.ID, "user.revoke", func(s *nodevisor.Server) error {
		return s.RemoveUser(id)
	})
	if err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, viewConsole)
	if !found {
		return
	}
	a := actorOf(r)
	key := srv.Key()
	var err error
	switch mux.Vars(r)["action"] {
	case "start":
		err = h.m.Start(r.Context(), a, key)
	case "stop":
		err = h.m.Stop(r.Context(), a, key)
	case "restart":
		err = h.m.Restart(r.Context(), a, key)
	case "kill":
		err = h.m.Kill(r.Context(), a, key)
	}
	if err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, viewConsole)
	if !found {
		return
	}
	if st, err := h.m.Status(r.Context(), srv.Key()); err != nil {
		h.fail(w, err)
	} else {
		h.writeJson(w, st)
	}
}

// getLog returns the console.  Clients poll it with the Etag, or wait for
// a change with the poll headers.
func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, viewConsole)
	if !found {
		return
	}
	log := h.m.Console().Log(srv.Key())
	if last, wait, ok := pollArgs(r); ok {
		log.Watch(last, wait)
	}
	recs, id := log.GetRecords(0)
	if notModified(w, r, strconv.FormatInt(id, 10)) {
		return
	}
	if n, e := strconv.Atoi(r.URL.Query().Get("limit")); e == nil && n > 0 && n < len(recs) {
		recs = recs[len(recs)-n:]
	}
	h.writeJson(w, recs)
}

func (h *Handler) postInput(w http.ResponseWriter, r *http.Request) {
	srv, found := h.lookup(w, r, viewConsole)
	if !found {
		return
	}
	var req InputRequest
	if !h.readJson(w, r, &req) {
		return
	}
	h.m.SendInput(srv.Key(), req.Line)
	h.writeJson(w, ok)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// NewHandler returns the API handler for m.  Every route requires HTTP
// basic authentication against the accounts in the manager's store.
func NewHandler(m *nodevisor.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()
	h := &Handler{m: m, r: r, logger: logger.Named("rest")}
	r.Use(h.logRequests, h.authenticate)

	r.HandleFunc("/info", h.getInfo).Methods("GET")
	r.HandleFunc("/servers", h.listServers).Methods("GET")
	r.HandleFunc("/servers", h.createServer).Methods("POST")
	r.HandleFunc("/servers/{server}", h.getServer).Methods("GET")
	r.HandleFunc("/servers/{server}", h.deleteServer).Methods("DELETE")
	r.HandleFunc("/servers/{server}/name", h.renameServer).Methods("PUT")
	r.HandleFunc("/servers/{server}/{action:suspend|unsuspend}", h.suspendServer).Methods("POST")
	r.HandleFunc("/servers/{server}/files", h.listFiles).Methods("GET")
	r.HandleFunc("/servers/{server}/file", h.readFile).Methods("GET")
	r.HandleFunc("/servers/{server}/file", h.writeFile).Methods("PUT")
	r.HandleFunc("/servers/{server}/file", h.deleteFile).Methods("DELETE")
	r.HandleFunc("/servers/{server}/rename", h.renameFile).Methods("POST")
	r.HandleFunc("/servers/{server}/mkdir", h.makeDir).Methods("POST")
	r.HandleFunc("/servers/{server}/startup", h.getStartup).Methods("GET")
	r.HandleFunc("/servers/{server}/startup", h.putStartup).Methods("PUT")
	r.HandleFunc("/servers/{server}/users", h.getUsers).Methods("GET")
	r.HandleFunc("/servers/{server}/users/{account}", h.putUser).Methods("PUT")
	r.HandleFunc("/servers/{server}/users/{account}", h.deleteUser).Methods("DELETE")
	r.HandleFunc("/servers/{server}/{action:start|stop|restart|kill}", h.lifecycle).Methods("POST")
	r.HandleFunc("/servers/{server}/status", h.getStatus).Methods("GET")
	r.HandleFunc("/servers/{server}/log", h.getLog).Methods("GET")
	r.HandleFunc("/servers/{server}/input", h.postInput).Methods("POST")
	r.HandleFunc("/servers/{server}/console", h.console).Methods("GET")
	return h
}
