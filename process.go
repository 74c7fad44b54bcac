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
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is the handle of one running server.
type Process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *lineWriter
	stderr  *lineWriter
	started time.Time
	done    chan struct{}
	err     error
	lock    sync.Mutex
}

var errProcessExited = errors.New("Process has exited")

// newProcess prepares the entry script of a server for launch under node.
// Every line the child writes to stdout or stderr is handed to emit.
func newProcess(node, dir string, lc LaunchConfig, emit func(string)) *Process {
	p := &Process{done: make(chan struct{})}
	p.cmd = exec.Command(node, lc.MainFile)
	p.cmd.Dir = dir
	p.cmd.Env = append(os.Environ(), "PORT="+lc.Port)
	// Grandchildren may hold the pipes open after the child is gone.
	p.cmd.WaitDelay = 2 * time.Second
	// Separate writers, so that partial lines on one stream are never
	// glued onto the other.
	p.stdout = newLineWriter(emit)
	p.stderr = newLineWriter(emit)
	p.cmd.Stdout = p.stdout
	p.cmd.Stderr = p.stderr
	return p
}

// start launches the child.  An error here is a spawn failure; nothing is
// left running.
func (p *Process) start() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	stdin, e := p.cmd.StdinPipe()
	if e != nil {
		return e
	}
	if e := p.cmd.Start(); e != nil {
		stdin.Close()
		return e
	}
	p.stdin = stdin
	p.started = time.Now()
	go p.doWait()
	return nil
}

func (p *Process) doWait() {
	e := p.cmd.Wait()
	p.stdout.Flush()
	p.stderr.Flush()
	p.lock.Lock()
	p.err = e
	p.stdin.Close()
	p.lock.Unlock()
	close(p.done)
}

// Done is closed once the child has exited and its output is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait waits up to d for the child to exit and reports whether it did.
// A d of zero waits forever.
func (p *Process) Wait(d time.Duration) bool {
	if d <= 0 {
		<-p.done
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// StartTime returns when the child was launched.
func (p *Process) StartTime() time.Time {
	return p.started
}

// ExitCode returns the exit status once Done is closed; -1 means the
// child was ended by a signal.
func (p *Process) ExitCode() int {
	if ps := p.cmd.ProcessState; ps != nil {
		return ps.ExitCode()
	}
	return -1
}

// Err returns the error reported by Wait, if any.
func (p *Process) Err() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.err
}

func (p *Process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Shutdown asks the child to terminate.
func (p *Process) Shutdown() error {
	if p.exited() {
		return errProcessExited
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

// Kill ends the child immediately.
func (p *Process) Kill() error {
	if p.exited() {
		return errProcessExited
	}
	return p.cmd.Process.Kill()
}

// Input writes one line to the child's standard input.
func (p *Process) Input(line string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.stdin == nil || p.exited() {
		return errProcessExited
	}
	_, e := io.WriteString(p.stdin, line+"\n")
	return e
}
