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

// Package config loads the daemon configuration from an ini file.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/nodevisor/nodevisor"
)

// EnvFile names the environment variable selecting the config file when
// none is given explicitly.
const EnvFile = "NODEVISOR_CONFIG"

const (
	DefaultListen   = "127.0.0.1:8321"
	DefaultMaxConns = 256
	DefaultDatabase = "./data/nodevisor.db"
)

type Config struct {
	Listen      string
	MaxConns    int
	Database    string
	LogLevel    string
	Development bool
	Runtime     nodevisor.Runtime
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	rt := nodevisor.DefaultRuntime()
	rt.WorkDir = "./data/work"
	return &Config{
		Listen:   DefaultListen,
		MaxConns: DefaultMaxConns,
		Database: DefaultDatabase,
		LogLevel: "info",
		Runtime:  rt,
	}
}

// Load reads the file at path, or the file named by $NODEVISOR_CONFIG if
// path is empty.  With neither, the defaults are returned.  Keys missing
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path == "" {
		return fromFile(ini.Empty())
	}
	f, e := ini.Load(path)
	if e != nil {
		return nil, e
	}
	return fromFile(f)
}

// Parse is Load for configuration already in memory.
func Parse(b []byte) (*Config, error) {
	f, e := ini.Load(b)
	if e != nil {
		return nil, e
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Config, error) {
	d := Default()
	srv := f.Section("server")
	run := f.Section("runtime")
	db := f.Section("database")
	lg := f.Section("log")

	c := &Config{
		Listen:      srv.Key("listen").MustString(d.Listen),
		MaxConns:    srv.Key("max_conns").MustInt(d.MaxConns),
		Database:    db.Key("path").MustString(d.Database),
		LogLevel:    lg.Key("level").MustString(d.LogLevel),
		Development: lg.Key("development").MustBool(d.Development),
		Runtime: nodevisor.Runtime{
			Node:           run.Key("node").MustString(d.Runtime.Node),
			Npm:            run.Key("npm").MustString(d.Runtime.Npm),
			WorkDir:        run.Key("work_dir").MustString(d.Runtime.WorkDir),
			InstallTimeout: run.Key("install_timeout").MustDuration(d.Runtime.InstallTimeout),
			StopGrace:      run.Key("stop_grace").MustDuration(d.Runtime.StopGrace),
		},
	}
	if c.MaxConns < 0 {
		return nil, fmt.Errorf("server.max_conns: %d is negative", c.MaxConns)
	}
	if c.Runtime.StopGrace <= 0 {
		return nil, fmt.Errorf("runtime.stop_grace: must be positive")
	}
	if _, e := zap.ParseAtomicLevel(c.LogLevel); e != nil {
		return nil, fmt.Errorf("log.level: %w", e)
	}
	return c, nil
}

// Logger builds the logger described by the [log] section.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, e := zap.ParseAtomicLevel(c.LogLevel)
	if e != nil {
		return nil, e
	}
	zc.Level = lvl
	return zc.Build()
}
