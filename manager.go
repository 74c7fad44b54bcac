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
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runtime describes the tools and places used to run servers.
type Runtime struct {
	Node           string        // Interpreter for entry scripts
	Npm            string        // Package installer
	WorkDir        string        // Root of the per-server working directories
	InstallTimeout time.Duration // Bound on each installer run
	StopGrace      time.Duration // Wait after a stop before cleaning up
}

// DefaultRuntime returns the runtime used when none is configured.
func DefaultRuntime() Runtime {
	return Runtime{
		Node:           "node",
		Npm:            "npm",
		WorkDir:        filepath.Join("data", "work"),
		InstallTimeout: 5 * time.Minute,
		StopGrace:      2 * time.Second,
	}
}

// Manager runs servers.  It owns the lifecycle state of every server, the
// registry of live processes, and their consoles.
type Manager struct {
	store      Store
	registry   *Registry
	console    *Console
	hub        *Hub
	rt         Runtime
	logger     *zap.Logger
	states     map[Key]State
	live       map[Key]*Process // whose output the console accepts
	draining   map[Key]*drain
	closing    bool
	serial     int64
	createTime time.Time
	updateTime time.Time
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
	editMx     sync.Mutex
	wg         sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithRuntime sets the tools and directories used to run servers.
func WithRuntime(rt Runtime) Option {
	return func(m *Manager) {
		m.rt = rt
	}
}

// WithRegistry supplies the process registry.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithHub supplies the hub viewers subscribe to.
func WithHub(h *Hub) Option {
	return func(m *Manager) {
		m.hub = h
	}
}

// ManagerInfo describes the manager itself.
type ManagerInfo struct {
	Serial     int64     `json:"serial"`
	Running    int       `json:"running"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

func (m *Manager) lock() {
	m.mx.Lock()
}

func (m *Manager) unlock() {
	m.mx.Unlock()
}

func (m *Manager) wakeUp() {
	// NB: If the lock is not held here, then there is a risk
	// that the woken goroutines won't see the updated serial number.
	for cv := range m.cvs {
		cv.Broadcast()
	}
}

func (m *Manager) bumpSerial() int64 {
	m.updateTime = time.Now()
	m.serial++
	m.wakeUp()
	return m.serial
}

// WatchSerial waits until the serial number differs from old, or until
// expire passes, and returns the current serial.  The serial changes on
// every lifecycle transition of any server.
func (m *Manager) WatchSerial(old int64, expire time.Duration) int64 {
	expired := false
	cv := sync.NewCond(&m.mx)
	var timer *time.Timer
	var rv int64

	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			m.lock()
			expired = true
			cv.Broadcast()
			m.unlock()
		})
	} else {
		expired = true
	}

	m.lock()
	m.cvs[cv] = true
	for {
		rv = m.serial
		if rv != old || expired {
			break
		}
		cv.Wait()
	}
	delete(m.cvs, cv)
	m.unlock()
	if timer != nil {
		timer.Stop()
	}
	return rv
}

func (m *Manager) Serial() int64 {
	m.lock()
	defer m.unlock()
	return m.serial
}

func (m *Manager) GetInfo() *ManagerInfo {
	m.lock()
	defer m.unlock()
	return &ManagerInfo{
		Serial:     m.serial,
		Running:    m.registry.Len(),
		CreateTime: m.createTime,
		UpdateTime: m.updateTime,
	}
}

// Console returns the consoles of all servers.
func (m *Manager) Console() *Console {
	return m.console
}

// Registry returns the live process registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}

// State returns the lifecycle state of key.
func (m *Manager) State(key Key) State {
	m.lock()
	defer m.unlock()
	return m.states[key]
}

func (m *Manager) transitionLocked(key Key, t trigger) (State, error) {
	from := m.states[key]
	to, err := next(from, t)
	if err != nil {
		return from, err
	}
	if to == StateStopped {
		delete(m.states, key)
	} else {
		m.states[key] = to
	}
	m.bumpSerial()
	m.hub.Publish(key, Message{Type: MessageState, State: to.String()})
	m.logger.Debug("transition",
		zap.Stringer("server", key),
		zap.Stringer("from", from),
		zap.String("trigger", string(t)),
		zap.Stringer("to", to))
	return to, nil
}

// transition is the only way a server changes state.
func (m *Manager) transition(key Key, t trigger) (State, error) {
	m.lock()
	defer m.unlock()
	return m.transitionLocked(key, t)
}

// advance is transition for background work, where a refusal means a
// bug rather than a user error.
func (m *Manager) advance(key Key, t trigger) {
	if _, err := m.transition(key, t); err != nil {
		m.logger.Error("illegal transition",
			zap.Stringer("server", key),
			zap.String("trigger", string(t)),
			zap.Error(err))
	}
}

// drain is a process asked to stop that may still be alive, for the
// length of the stop grace.
type drain struct {
	p      *Process
	killed bool
}

func (m *Manager) startDrain(key Key, p *Process) *drain {
	d := &drain{p: p}
	m.draining[key] = d
	return d
}

// endDrain forgets d and reports whether it was killed meanwhile.
func (m *Manager) endDrain(key Key, d *drain) bool {
	m.lock()
	defer m.unlock()
	if m.draining[key] == d {
		delete(m.draining, key)
	}
	return d.killed
}

// accepts reports whether output of p should still reach the console.
func (m *Manager) accepts(key Key, p *Process) bool {
	m.lock()
	defer m.unlock()
	return m.live[key] == p
}

func (m *Manager) infof(key Key, format string, v ...interface{}) {
	m.console.Printf(key, SeverityInfo, format, v...)
}

func (m *Manager) warnf(key Key, format string, v ...interface{}) {
	m.console.Printf(key, SeverityWarn, format, v...)
}

func (m *Manager) errorf(key Key, format string, v ...interface{}) {
	m.console.Printf(key, SeverityError, format, v...)
}

func (m *Manager) successf(key Key, format string, v ...interface{}) {
	m.console.Printf(key, SeveritySuccess, format, v...)
}

// record appends to the audit trail.  Failures are only logged.
func (m *Manager) record(key Key, a Actor, name string, kv ...string) {
	details := map[string]string{
		"owner":  key.OwnerID,
		"server": key.ServerID,
	}
	if a.ID != "" {
		details["actor"] = a.ID
	}
	for i := 0; i+1 < len(kv); i += 2 {
		details[kv[i]] = kv[i+1]
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	ev := Event{Time: time.Now(), Name: name, Details: details}
	if err := m.store.RecordEvent(ctx, ev); err != nil {
		m.logger.Warn("event not recorded",
			zap.String("event", name), zap.Stringer("server", key), zap.Error(err))
	}
}

func (m *Manager) setRunning(key Key, start time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	st := ProcessState{IsRunning: true, StartTime: &start}
	if err := m.store.SetState(ctx, key, st); err != nil {
		m.logger.Warn("state not saved", zap.Stringer("server", key), zap.Error(err))
	}
}

func (m *Manager) clearState(key Key) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.ClearState(ctx, key); err != nil {
		m.logger.Warn("state not cleared", zap.Stringer("server", key), zap.Error(err))
	}
}

// segment makes an id safe to use as a single path element.
func segment(id string) string {
	s := strings.ReplaceAll(url.PathEscape(id), ".", "%2E")
	if s == "" {
		return "_"
	}
	return s
}

// WorkDir returns the working directory of key.
func (m *Manager) WorkDir(key Key) string {
	return filepath.Join(m.rt.WorkDir, segment(key.OwnerID), segment(key.ServerID))
}

// removeWorkDir deletes the working directory, reporting failure as a
// console warning.
func (m *Manager) removeWorkDir(key Key) {
	if err := os.RemoveAll(m.WorkDir(key)); err != nil {
		m.warnf(key, "Could not remove working directory: %v", err)
	}
}

// Status is the observable state of one server.
type Status struct {
	State     string     `json:"state"`
	IsRunning bool       `json:"isRunning"`
	StartTime *time.Time `json:"startTime,omitempty"`
	Pid       int        `json:"pid,omitempty"`
	Viewers   int        `json:"viewers"`
}

// Status reports the lifecycle state of key along with its persisted
// running hint.
func (m *Manager) Status(ctx context.Context, key Key) (*Status, error) {
	st, err := m.store.GetState(ctx, key)
	if err != nil {
		return nil, err
	}
	rv := &Status{
		State:     m.State(key).String(),
		IsRunning: st.IsRunning,
		StartTime: st.StartTime,
		Viewers:   m.hub.Count(key),
	}
	if p := m.registry.Get(key); p != nil {
		rv.Pid = p.Pid()
	}
	return rv, nil
}

// Reconcile fixes up persisted state after the daemon starts.  Nothing
// can be running yet, so every server recorded as running is marked
// stopped.
func (m *Manager) Reconcile(ctx context.Context) error {
	keys, err := m.store.RunningKeys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if m.registry.Get(key) != nil {
			continue
		}
		if err := m.store.ClearState(ctx, key); err != nil {
			return err
		}
		m.warnf(key, "Dashboard restarted; server marked as stopped")
		m.record(key, Actor{}, "server.reconciled")
		m.logger.Info("reconciled stale state", zap.Stringer("server", key))
	}
	return nil
}

// Shutdown kills every running server and waits for background work to
// finish, console writes included.  Starts in flight are abandoned before
// they spawn.
func (m *Manager) Shutdown() {
	m.lock()
	m.closing = true
	keys := m.registry.Keys()
	for key := range m.draining {
		keys = append(keys, key)
	}
	m.unlock()
	for _, key := range keys {
		m.Kill(context.Background(), Actor{}, key)
	}
	m.wg.Wait()
	m.console.Flush()
	m.logger.Info("manager shut down", zap.Int("killed", len(keys)))
}

// NewManager returns a Manager persisting to store.
func NewManager(store Store, opts ...Option) *Manager {
	// The serial number starts at the current time in nsec, so that a
	// restarted daemon never repeats a serial a client has cached.
	m := &Manager{
		store:    store,
		rt:       DefaultRuntime(),
		states:   make(map[Key]State),
		live:     make(map[Key]*Process),
		draining: make(map[Key]*drain),
		cvs:      make(map[*sync.Cond]bool),
		serial:   time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("lifecycle")
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.hub == nil {
		m.hub = NewHub()
	}
	m.console = NewConsole(store, m.hub, m.logger)
	m.createTime = time.Now()
	m.updateTime = m.createTime
	return m
}
