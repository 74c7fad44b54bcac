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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// manifestFile is the dependency manifest a full install is run for.
const manifestFile = "package.json"

// server loads the record for key.
func (m *Manager) server(ctx context.Context, key Key) (*Server, error) {
	srv, err := m.store.GetServer(ctx, key.ServerID)
	if err != nil {
		return nil, err
	}
	if srv.OwnerID != key.OwnerID {
		return nil, ErrServerNotFound
	}
	return srv, nil
}

// Start launches a stopped server.  It returns as soon as the request is
// accepted; preparation, installation, and the process itself report
// through the console only.
func (m *Manager) Start(ctx context.Context, a Actor, key Key) error {
	srv, err := m.server(ctx, key)
	if err != nil {
		return err
	}
	if srv.Suspended && !a.Admin {
		m.errorf(key, "Cannot start: %v", ErrSuspended)
		return ErrSuspended
	}

	m.lock()
	if m.closing {
		m.unlock()
		return ErrBusy
	}
	if m.registry.Get(key) != nil {
		m.unlock()
		return ErrAlreadyRunning
	}
	if _, err := m.transitionLocked(key, trigStart); err != nil {
		m.unlock()
		return err
	}
	delete(m.live, key)
	m.unlock()

	m.console.Clear(key)
	m.record(key, a, "server.start")
	m.wg.Add(1)
	go m.launch(srv)
	return nil
}

// Restart stops the server if it runs, then starts it again.  The console
// is cleared before anything else happens.
func (m *Manager) Restart(ctx context.Context, a Actor, key Key) error {
	srv, err := m.server(ctx, key)
	if err != nil {
		return err
	}
	if srv.Suspended && !a.Admin {
		m.errorf(key, "Cannot restart: %v", ErrSuspended)
		return ErrSuspended
	}

	m.lock()
	p := m.registry.Get(key)
	var d *drain
	if m.closing {
		err = ErrBusy
	} else if p != nil {
		if _, err = m.transitionLocked(key, trigStop); err == nil {
			m.registry.DeleteIf(key, p)
			d = m.startDrain(key, p)
		}
	} else {
		_, err = m.transitionLocked(key, trigStart)
	}
	if err == nil {
		delete(m.live, key)
	}
	m.unlock()
	if err != nil {
		return err
	}

	m.console.Clear(key)
	m.record(key, a, "server.restart")
	m.wg.Add(1)
	if p == nil {
		go m.launch(srv)
		return nil
	}
	go func() {
		m.infof(key, "Stopping server for restart")
		if err := p.Shutdown(); err != nil {
			m.warnf(key, "Could not signal process: %v", err)
		}
		m.clearState(key)
		// Give the old process time to let go of its files before the
		// working directory is replaced.
		if !p.Wait(m.rt.StopGrace) {
			p.Kill()
			p.Wait(m.rt.StopGrace)
		}
		if m.endDrain(key, d) {
			m.removeWorkDir(key)
			m.infof(key, "Restart cancelled")
			m.advance(key, trigReap)
			m.wg.Done()
			return
		}
		m.advance(key, trigRestart)
		m.launch(srv)
	}()
	return nil
}

// launch carries a server from Preparing to Running, or back to Stopped
// if anything fatal happens on the way.
func (m *Manager) launch(srv *Server) {
	defer m.wg.Done()
	key := srv.Key()
	dir := m.WorkDir(key)

	if err := os.RemoveAll(dir); err != nil {
		m.warnf(key, "Could not remove old working directory: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.abort(key, fmt.Errorf("cannot create working directory: %w", err))
		return
	}
	m.infof(key, "Preparing %s", srv.Name)
	if err := materialize(dir, srv.Files); err != nil {
		m.abort(key, fmt.Errorf("cannot write server files: %w", err))
		return
	}

	lc := srv.Startup.Resolve()
	emit := func(s string) {
		m.console.Append(key, FormatLine(s))
	}

	// Explicitly requested packages are a convenience; failing to get
	// them does not stop the server.
	if len(lc.Packages) != 0 {
		m.advance(key, trigInstall)
		m.infof(key, "Installing packages: %s", strings.Join(lc.Packages, " "))
		err := installPackages(m.rt.Npm, dir, lc.Packages, m.rt.InstallTimeout, emit)
		if err != nil {
			m.errorf(key, "Package installation failed: %v", err)
		} else {
			m.successf(key, "Packages installed")
		}
	}

	entry := filepath.Join(dir, filepath.FromSlash(lc.MainFile))
	if fi, err := os.Stat(entry); err != nil || fi.IsDir() {
		m.abort(key, fmt.Errorf("%w: %s", ErrEntryScriptMissing, lc.MainFile))
		return
	}

	if _, err := os.Stat(filepath.Join(dir, manifestFile)); err == nil {
		m.advance(key, trigInstall)
		m.infof(key, "Installing dependencies from %s", manifestFile)
		err := installPackages(m.rt.Npm, dir, nil, m.rt.InstallTimeout, emit)
		if err != nil {
			m.abort(key, fmt.Errorf("%w: %v", ErrDependencyInstall, err))
			return
		}
		m.successf(key, "Dependencies installed")
	}

	m.spawn(srv, dir, lc)
}

// materialize writes every file of the tree beneath dir.
func materialize(dir string, files Files) error {
	for _, p := range files.Paths() {
		b, err := files.Read(p)
		if err != nil {
			return err
		}
		name := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(name, b, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) spawn(srv *Server, dir string, lc LaunchConfig) {
	key := srv.Key()
	var p *Process
	p = newProcess(m.rt.Node, dir, lc, func(s string) {
		if m.accepts(key, p) {
			m.console.Append(key, FormatLine(s))
		}
	})

	m.infof(key, "Starting %s on port %s", lc.MainFile, lc.Port)
	m.lock()
	m.live[key] = p
	m.unlock()
	if err := p.start(); err != nil {
		m.lock()
		delete(m.live, key)
		m.unlock()
		m.abort(key, fmt.Errorf("cannot start process: %w", err))
		return
	}
	m.setRunning(key, p.StartTime())

	m.lock()
	err := ErrBusy
	if !m.closing {
		err = m.registry.Set(key, p)
	}
	if err == nil {
		_, err = m.transitionLocked(key, trigSpawn)
	}
	m.unlock()
	if err != nil {
		p.Kill()
		m.clearState(key)
		m.abort(key, err)
		return
	}

	m.successf(key, "Server started (pid %d)", p.Pid())
	m.record(key, Actor{}, "server.running", "pid", strconv.Itoa(p.Pid()))
	m.wg.Add(1)
	go m.reap(key, p)
}

// reap cleans up after a process that exits on its own.  Processes that
// were stopped or killed are already unregistered and left alone.
func (m *Manager) reap(key Key, p *Process) {
	defer m.wg.Done()
	<-p.Done()

	if !m.registry.DeleteIf(key, p) {
		return
	}
	code := p.ExitCode()
	if code == 0 {
		m.infof(key, "Process exited with code 0")
	} else {
		m.warnf(key, "Process exited with code %d", code)
	}
	m.clearState(key)
	m.removeWorkDir(key)
	m.record(key, Actor{}, "server.exit", "code", strconv.Itoa(code))
	m.logger.Info("process exited", zap.Stringer("server", key), zap.Int("code", code))
	m.advance(key, trigExit)
}

// abort ends a failed start.
func (m *Manager) abort(key Key, err error) {
	m.errorf(key, "Start failed: %v", err)
	m.removeWorkDir(key)
	m.record(key, Actor{}, "server.start_failed", "error", err.Error())
	m.logger.Info("start failed", zap.Stringer("server", key), zap.Error(err))
	m.advance(key, trigAbort)
}

// Stop asks a running server to terminate.  The handle is dropped at once,
// without waiting for the process to exit.
func (m *Manager) Stop(ctx context.Context, a Actor, key Key) error {
	m.lock()
	p := m.registry.Get(key)
	if p == nil {
		m.unlock()
		return ErrNotRunning
	}
	if _, err := m.transitionLocked(key, trigStop); err != nil {
		m.unlock()
		return err
	}
	m.registry.DeleteIf(key, p)
	d := m.startDrain(key, p)
	m.unlock()

	if err := p.Shutdown(); err != nil {
		m.warnf(key, "Could not signal process: %v", err)
	}
	m.clearState(key)
	m.removeWorkDir(key)
	m.infof(key, "Server stopped")
	m.record(key, a, "server.stop")
	m.advance(key, trigReap)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !p.Wait(m.rt.StopGrace) {
			m.logger.Info("graceful stop timed out", zap.Stringer("server", key))
			p.Kill()
		}
		m.endDrain(key, d)
	}()
	return nil
}

// Kill forcibly ends a server.  Killing a server that is not running is
// not an error.  A process still within its stop grace is killed at once,
// and a restart waiting on it is cancelled.
func (m *Manager) Kill(ctx context.Context, a Actor, key Key) error {
	m.lock()
	p := m.registry.Get(key)
	var d *drain
	if p != nil {
		if _, err := m.transitionLocked(key, trigKill); err != nil {
			m.unlock()
			return err
		}
		m.registry.DeleteIf(key, p)
	} else if st := m.states[key]; st == StateStopped || st == StateStopping {
		if d = m.draining[key]; d != nil {
			d.killed = true
		} else if st == StateStopped {
			// Otherwise a start in progress owns the directory.
			m.removeWorkDir(key)
		}
	}
	m.unlock()

	m.clearState(key)
	if d != nil {
		if err := d.p.Kill(); err != nil && err != errProcessExited {
			m.warnf(key, "Could not kill process: %v", err)
		}
		m.warnf(key, "Server killed")
		m.record(key, a, "server.kill", "running", "true")
		return nil
	}
	if p == nil {
		m.infof(key, "Server was not running")
		m.record(key, a, "server.kill", "running", "false")
		return nil
	}

	if err := p.Kill(); err != nil {
		m.warnf(key, "Could not kill process: %v", err)
	}
	m.warnf(key, "Server killed")
	m.record(key, a, "server.kill", "running", "true")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		p.Wait(m.rt.StopGrace)
		m.removeWorkDir(key)
		m.advance(key, trigReap)
	}()
	return nil
}

// SendInput forwards a line typed by a viewer to the server's standard
// input.  It is dropped if nothing is running.
func (m *Manager) SendInput(key Key, line string) {
	p := m.registry.Get(key)
	if p == nil {
		return
	}
	if err := p.Input(line); err != nil {
		m.logger.Debug("input dropped", zap.Stringer("server", key), zap.Error(err))
		return
	}
	m.infof(key, "> %s", line)
}
