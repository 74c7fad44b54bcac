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
)

var (
	ErrSuspended          = errors.New("Server is suspended")
	ErrEntryScriptMissing = errors.New("Entry script not found")
	ErrDependencyInstall  = errors.New("Dependency installation failed")
	ErrAlreadyRunning     = errors.New("Server is already running")
	ErrNotRunning         = errors.New("Server is not running")
	ErrBusy               = errors.New("Server is busy with another operation")
	ErrNotFound           = errors.New("File not found")
	ErrAlreadyExists      = errors.New("File already exists")
	ErrInvalidPath        = errors.New("Invalid path")
	ErrServerNotFound     = errors.New("Server not found")
	ErrAccountNotFound    = errors.New("Account not found")
	ErrNameTaken          = errors.New("Server name already in use")
	ErrInvalidName        = errors.New("Invalid server name")
	ErrInvalidPort        = errors.New("Port must be between 1 and 65535")
	ErrBadSettingName     = errors.New("Bad startup setting name")
	ErrPermission         = errors.New("Permission denied")
	ErrOwnerImmutable     = errors.New("Owner cannot be changed")
)
