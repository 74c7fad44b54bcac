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
)

// State is where a server is in its lifecycle.
type State int

const (
	StateStopped State = iota
	StatePreparing
	StateInstalling
	StateRunning
	StateStopping
	StateKilled
)

var stateNames = []string{
	StateStopped:    "stopped",
	StatePreparing:  "preparing",
	StateInstalling: "installing",
	StateRunning:    "running",
	StateStopping:   "stopping",
	StateKilled:     "killed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Busy reports whether the server is somewhere between stopped and
// running and cannot accept a new lifecycle request.
func (s State) Busy() bool {
	return s != StateStopped && s != StateRunning
}

// trigger is something that moves a server between states.
type trigger string

const (
	trigStart   trigger = "start"   // start or restart accepted
	trigInstall trigger = "install" // running the package installer
	trigSpawn   trigger = "spawn"   // child process is up
	trigAbort   trigger = "abort"   // start failed before or at spawn
	trigExit    trigger = "exit"    // child exited by itself
	trigStop    trigger = "stop"    // graceful stop requested
	trigKill    trigger = "kill"    // forced stop requested
	trigReap    trigger = "reap"    // stop or kill cleanup finished
	trigRestart trigger = "restart" // stop finished, go straight to start
)

// transitions is the whole state machine.  Anything not listed is refused.
var transitions = map[State]map[trigger]State{
	StateStopped: {
		trigStart: StatePreparing,
	},
	StatePreparing: {
		trigInstall: StateInstalling,
		trigSpawn:   StateRunning,
		trigAbort:   StateStopped,
	},
	StateInstalling: {
		trigInstall: StateInstalling,
		trigSpawn:   StateRunning,
		trigAbort:   StateStopped,
	},
	StateRunning: {
		trigStop: StateStopping,
		trigKill: StateKilled,
		trigExit: StateStopped,
	},
	StateStopping: {
		trigReap:    StateStopped,
		trigRestart: StatePreparing,
	},
	StateKilled: {
		trigReap: StateStopped,
	},
}

// next returns the state reached from s by t.
func next(s State, t trigger) (State, error) {
	if to, ok := transitions[s][t]; ok {
		return to, nil
	}
	if t == trigStart && s != StateStopped {
		if s == StateRunning {
			return s, ErrAlreadyRunning
		}
		return s, ErrBusy
	}
	return s, fmt.Errorf("%w: cannot %s while %s", ErrBusy, t, s)
}
