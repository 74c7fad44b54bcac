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
	"fmt"
	"os/exec"
	"sync/atomic"
	"time"
)

// installPackages runs the package installer in dir.  With no names it
// installs whatever the manifest lists.  Output goes to emit line by line.
func installPackages(npm, dir string, names []string, timeout time.Duration, emit func(string)) error {
	args := append([]string{"install"}, names...)
	c := exec.Command(npm, args...)
	c.Dir = dir
	c.WaitDelay = time.Second
	w := newLineWriter(emit)
	c.Stdout = w
	c.Stderr = w
	e := runCmdWithTimeout(c, timeout)
	w.Flush()
	return e
}

// runCmdWithTimeout runs c to completion, killing it once d passes.  A d
// of zero selects ten seconds.
func runCmdWithTimeout(c *exec.Cmd, d time.Duration) error {
	if d == 0 {
		d = time.Second * 10
	}
	if e := c.Start(); e != nil {
		return e
	}
	var timedOut int32
	proc := c.Process
	timer := time.AfterFunc(d, func() {
		atomic.StoreInt32(&timedOut, 1)
		proc.Kill()
	})
	e := c.Wait()
	timer.Stop()
	if atomic.LoadInt32(&timedOut) != 0 {
		return fmt.Errorf("timed out after %v", d)
	}
	return e
}
