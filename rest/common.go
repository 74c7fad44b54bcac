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
	"errors"
	"net/http"
	"time"

	"github.com/nodevisor/nodevisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"
)

// Long-poll request headers.  A client that already holds the resource
// named by PollEtagHeader waits up to PollTimeHeader seconds for it to
// change.
const (
	PollEtagHeader = "X-Nodevisor-Poll-Etag"
	PollTimeHeader = "X-Nodevisor-Poll-Time"
)

// maxPollTime bounds how long one request may wait.
const maxPollTime = 300 * time.Second

var ok struct{}

// ServerInfo is how a server is presented to a client.  Sections the
// caller may not view are omitted.
type ServerInfo struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	OwnerID     string                     `json:"ownerId"`
	Suspended   bool                       `json:"isSuspended"`
	Permissions nodevisor.Permissions      `json:"permissions"`
	Startup     *nodevisor.StartupSettings `json:"startupSettings,omitempty"`
	Status      *nodevisor.Status          `json:"status,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}

// NameRequest carries a server name.
type NameRequest struct {
	Name string `json:"name"`
}

// RenameRequest moves a file or directory.
type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// InputRequest is a line of console input, also used as the websocket
// frame a viewer sends.
type InputRequest struct {
	Type string `json:"type,omitempty"`
	Line string `json:"line"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// statusCodes maps domain errors to HTTP status codes.  Anything not
// listed is an internal error.
var statusCodes = []struct {
	err  error
	code int
}{
	{nodevisor.ErrServerNotFound, http.StatusNotFound},
	{nodevisor.ErrAccountNotFound, http.StatusNotFound},
	{nodevisor.ErrNotFound, http.StatusNotFound},
	{nodevisor.ErrPermission, http.StatusForbidden},
	{nodevisor.ErrSuspended, http.StatusForbidden},
	{nodevisor.ErrAlreadyExists, http.StatusConflict},
	{nodevisor.ErrNameTaken, http.StatusConflict},
	{nodevisor.ErrAlreadyRunning, http.StatusConflict},
	{nodevisor.ErrNotRunning, http.StatusConflict},
	{nodevisor.ErrBusy, http.StatusConflict},
	{nodevisor.ErrOwnerImmutable, http.StatusConflict},
	{nodevisor.ErrInvalidPath, http.StatusBadRequest},
	{nodevisor.ErrInvalidName, http.StatusBadRequest},
	{nodevisor.ErrInvalidPort, http.StatusBadRequest},
	{nodevisor.ErrBadSettingName, http.StatusBadRequest},
}

// toError converts a domain error into an API error.
func toError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return &Error{Code: sc.code, Message: err.Error()}
		}
	}
	return &Error{Code: http.StatusInternalServerError, Message: err.Error()}
}
