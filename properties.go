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
	"strconv"
	"strings"
)

// SettingName names a startup setting.  These are the keys used by the
// REST API and stored with the server record.
type SettingName string

const (
	SettingMainFile SettingName = "mainFile" // Entry script
	SettingPackages             = "packages" // Extra packages, whitespace separated
	SettingPort                 = "port"     // PORT handed to the process
)

const (
	DefaultMainFile = "index.js"
	DefaultPort     = "3000"
)

// StartupSettings holds how a server is launched.  Values are kept as the
// user typed them; Resolve applies defaults.
type StartupSettings struct {
	MainFile string `json:"mainFile"`
	Packages string `json:"packages"`
	Port     string `json:"port"`
}

// DefaultStartupSettings returns the settings of a freshly created server.
func DefaultStartupSettings() StartupSettings {
	return StartupSettings{MainFile: DefaultMainFile, Port: DefaultPort}
}

// Get returns the named setting.
func (s StartupSettings) Get(n SettingName) (string, error) {
	switch n {
	case SettingMainFile:
		return s.MainFile, nil
	case SettingPackages:
		return s.Packages, nil
	case SettingPort:
		return s.Port, nil
	}
	return "", ErrBadSettingName
}

// Set validates and stores a setting.  The port is only ever validated
// here; start trusts whatever was stored.
func (s *StartupSettings) Set(n SettingName, v string) error {
	v = strings.TrimSpace(v)
	switch n {
	case SettingMainFile:
		if v == "" {
			return ErrInvalidPath
		}
		s.MainFile = NormalizePath(v)
		if s.MainFile == "" {
			return ErrInvalidPath
		}
	case SettingPackages:
		s.Packages = v
	case SettingPort:
		if err := ValidatePort(v); err != nil {
			return err
		}
		s.Port = v
	default:
		return ErrBadSettingName
	}
	return nil
}

// ValidatePort checks that v is a decimal port number.
func ValidatePort(v string) error {
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// LaunchConfig is the resolved form of StartupSettings.
type LaunchConfig struct {
	MainFile string
	Packages []string
	Port     string
}

// Resolve applies defaults and splits the package list, discarding empty
// tokens.
func (s StartupSettings) Resolve() LaunchConfig {
	lc := LaunchConfig{
		MainFile: NormalizePath(s.MainFile),
		Packages: strings.Fields(s.Packages),
		Port:     strings.TrimSpace(s.Port),
	}
	if lc.MainFile == "" {
		lc.MainFile = DefaultMainFile
	}
	if lc.Port == "" {
		lc.Port = DefaultPort
	}
	return lc
}
