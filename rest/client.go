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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nodevisor/nodevisor"
)

// LogInfo is a snapshot of a console, tagged so that it can be polled
// for changes.
type LogInfo struct {
	etag    string
	Records []nodevisor.Line
}

// Etag returns the version of the console this snapshot reflects.
func (l *LogInfo) Etag() string {
	return l.etag
}

type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client

	logs map[string]*LogInfo
	lock sync.Mutex
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) url(id string) string {
	if id == "" {
		return c.base + "/servers"
	}
	return c.base + "/servers/" + url.PathEscape(id)
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, e := http.NewRequestWithContext(ctx, method, u, body)
	if e != nil {
		return nil, e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	return req, nil
}

// responseError decodes the error body, falling back to the status line.
func responseError(res *http.Response) error {
	e := &Error{}
	if b, err := io.ReadAll(res.Body); err == nil && json.Unmarshal(b, e) == nil && e.Message != "" {
		e.Code = res.StatusCode
		return e
	}
	return &Error{Code: res.StatusCode, Message: res.Status}
}

// poll issues an HTTP GET against the URL, optionally checking for a cache,
// including optionally issuing a long poll that tries to wait until the
// value changes.  The return values are the new Etag and any error.  If the
// value did not change, then the returned etag will be "", but the error will
// be nil.
func (c *Client) poll(ctx context.Context, u string, etag string, wait int, v interface{}) (string, error) {
	req, e := c.newRequest(ctx, "GET", u, nil)
	if e != nil {
		return "", e
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollEtagHeader, etag)
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", responseError(res)
	}
	if e := json.NewDecoder(res.Body).Decode(v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

// call sends a request with an optional JSON body and decodes the reply
// into out, if out is not nil.
func (c *Client) call(ctx context.Context, method, u string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, e := json.Marshal(in)
		if e != nil {
			return e
		}
		body = bytes.NewReader(b)
	}
	req, e := c.newRequest(ctx, method, u, body)
	if e != nil {
		return e
	}
	if in != nil {
		req.Header.Set("Content-Type", mimeJson)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// Info returns the manager summary and its etag.
func (c *Client) Info(ctx context.Context) (*nodevisor.ManagerInfo, string, error) {
	v := &nodevisor.ManagerInfo{}
	etag, e := c.poll(ctx, c.base+"/info", "", 0, v)
	if e != nil {
		return nil, "", e
	}
	return v, etag, nil
}

// Watch waits for the manager to change from etag, returning the new
// etag.  An unchanged etag is returned if the wait expired.
func (c *Client) Watch(ctx context.Context, etag string) (string, error) {
	v := &nodevisor.ManagerInfo{}
	ntag, e := c.poll(ctx, c.base+"/info", etag, 300, v)
	if e != nil {
		return "", e
	}
	if ntag == "" {
		return etag, nil
	}
	return ntag, nil
}

// Servers returns the servers visible to the caller.
func (c *Client) Servers(ctx context.Context) ([]*ServerInfo, error) {
	var v []*ServerInfo
	if e := c.call(ctx, "GET", c.url(""), nil, &v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) GetServer(ctx context.Context, id string) (*ServerInfo, error) {
	v := &ServerInfo{}
	if e := c.call(ctx, "GET", c.url(id), nil, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) CreateServer(ctx context.Context, name string) (*ServerInfo, error) {
	v := &ServerInfo{}
	if e := c.call(ctx, "POST", c.url(""), &NameRequest{Name: name}, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) DeleteServer(ctx context.Context, id string) error {
	return c.call(ctx, "DELETE", c.url(id), nil, nil)
}

func (c *Client) postServer(ctx context.Context, id string, action string) error {
	return c.call(ctx, "POST", c.url(id)+"/"+action, nil, nil)
}

func (c *Client) StartServer(ctx context.Context, id string) error {
	return c.postServer(ctx, id, "start")
}

func (c *Client) StopServer(ctx context.Context, id string) error {
	return c.postServer(ctx, id, "stop")
}

func (c *Client) RestartServer(ctx context.Context, id string) error {
	return c.postServer(ctx, id, "restart")
}

func (c *Client) KillServer(ctx context.Context, id string) error {
	return c.postServer(ctx, id, "kill")
}

func (c *Client) Status(ctx context.Context, id string) (*nodevisor.Status, error) {
	v := &nodevisor.Status{}
	if e := c.call(ctx, "GET", c.url(id)+"/status", nil, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) SendInput(ctx context.Context, id string, line string) error {
	return c.call(ctx, "POST", c.url(id)+"/input", &InputRequest{Line: line}, nil)
}

// WriteFile stores b at path in the server's file tree.
func (c *Client) WriteFile(ctx context.Context, id, path string, b []byte) error {
	u := c.url(id) + "/file?path=" + url.QueryEscape(path)
	req, e := c.newRequest(ctx, "PUT", u, bytes.NewReader(b))
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	return nil
}

func (c *Client) ReadFile(ctx context.Context, id, path string) ([]byte, error) {
	u := c.url(id) + "/file?path=" + url.QueryEscape(path)
	req, e := c.newRequest(ctx, "GET", u, nil)
	if e != nil {
		return nil, e
	}
	res, e := c.client.Do(req)
	if e != nil {
		return nil, e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, responseError(res)
	}
	return io.ReadAll(res.Body)
}

func (c *Client) ListFiles(ctx context.Context, id, dir string) ([]nodevisor.Entry, error) {
	var v []nodevisor.Entry
	u := c.url(id) + "/files?path=" + url.QueryEscape(dir)
	if e := c.call(ctx, "GET", u, nil, &v); e != nil {
		return nil, e
	}
	return v, nil
}

// SetStartup changes the named startup settings.
func (c *Client) SetStartup(ctx context.Context, id string, settings map[string]string) (*nodevisor.StartupSettings, error) {
	v := &nodevisor.StartupSettings{}
	if e := c.call(ctx, "PUT", c.url(id)+"/startup", settings, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) pollLog(ctx context.Context, id string, secs int, last *LogInfo) (*LogInfo, error) {
	v := &LogInfo{}

	c.lock.Lock()
	cached, ok := c.logs[id]
	c.lock.Unlock()

	otag := ""
	if last == nil {
		secs = 0
	} else if ok && last.etag != cached.etag {
		// The cache is already newer than what the caller holds.
		return cached, nil
	} else {
		otag = last.etag
	}

	etag, e := c.poll(ctx, c.url(id)+"/log", otag, secs, &v.Records)
	if e != nil {
		c.lock.Lock()
		delete(c.logs, id)
		c.lock.Unlock()
		return nil, e
	}
	if etag == "" {
		if cached == nil {
			return last, nil
		}
		return cached, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.logs[id] = v
	c.lock.Unlock()
	return v, nil
}

// WatchLog waits up to five minutes for the console to change from last.
func (c *Client) WatchLog(ctx context.Context, id string, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, id, 300, last)
}

func (c *Client) GetLog(ctx context.Context, id string) (*LogInfo, error) {
	return c.pollLog(ctx, id, 0, nil)
}

// AttachConsole opens the live console of a server.  The first message
// read from the connection carries the history.
func (c *Client) AttachConsole(ctx context.Context, id string) (*websocket.Conn, error) {
	u := c.url(id) + "/console"
	if strings.HasPrefix(u, "https://") {
		u = "wss://" + strings.TrimPrefix(u, "https://")
	} else {
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	hdr := http.Header{}
	if c.auth {
		req, _ := http.NewRequest("GET", u, nil)
		req.SetBasicAuth(c.user, c.pass)
		hdr.Set("Authorization", req.Header.Get("Authorization"))
	}
	conn, res, e := websocket.DefaultDialer.DialContext(ctx, u, hdr)
	if e != nil {
		if res != nil && res.StatusCode != http.StatusSwitchingProtocols {
			return nil, responseError(res)
		}
		return nil, e
	}
	return conn, nil
}

// NewClient returns a Client handle.  The transport maybe nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	c := &Client{
		base:   strings.TrimSuffix(baseURI, "/"),
		client: &http.Client{},
		logs:   make(map[string]*LogInfo),
	}
	if t != nil {
		c.client.Transport = t
	}
	return c
}
