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

// Command nodevisord is the nodevisor daemon.  It serves the REST API and
// runs the Node.js servers its users define.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/netutil"

	"github.com/nodevisor/nodevisor"
	"github.com/nodevisor/nodevisor/config"
	"github.com/nodevisor/nodevisor/rest"
	"github.com/nodevisor/nodevisor/store"
)

// setup loads the configuration and opens the database.
func setup(c *cli.Context) (*config.Config, *store.SQLite, error) {
	cfg, e := config.Load(c.String("config"))
	if e != nil {
		return nil, nil, e
	}
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	db, e := store.Open(cfg.Database)
	if e != nil {
		return nil, nil, fmt.Errorf("database %s: %w", cfg.Database, e)
	}
	return cfg, db, nil
}

func serve(c *cli.Context) error {
	cfg, db, e := setup(c)
	if e != nil {
		return e
	}
	defer db.Close()

	logger, e := cfg.Logger()
	if e != nil {
		return e
	}
	defer logger.Sync()

	m := nodevisor.NewManager(db, nodevisor.WithRuntime(cfg.Runtime), nodevisor.WithLogger(logger))
	if e := m.Reconcile(c.Context); e != nil {
		return fmt.Errorf("reconcile: %w", e)
	}

	l, e := net.Listen("tcp", cfg.Listen)
	if e != nil {
		return e
	}
	if cfg.MaxConns > 0 {
		l = netutil.LimitListener(l, cfg.MaxConns)
	}
	hs := &http.Server{
		Handler:           rest.NewHandler(m, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	errs := make(chan error, 1)
	go func() {
		errs <- hs.Serve(l)
	}()
	logger.Info("listening", zap.String("addr", l.Addr().String()))

	select {
	case sig := <-sigs:
		logger.Info("shutting down", zap.Stringer("signal", sig))
	case e = <-errs:
		logger.Error("server failed", zap.Error(e))
	}

	// Long polls and console viewers keep connections open, so the
	// graceful shutdown is bounded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hs.Shutdown(ctx)
	m.Shutdown()
	if e != nil && !errors.Is(e, http.ErrServerClosed) {
		return e
	}
	return nil
}

func userAdd(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: nodevisord useradd <name> <password>", 2)
	}
	name, pass := c.Args().Get(0), c.Args().Get(1)
	_, db, e := setup(c)
	if e != nil {
		return e
	}
	defer db.Close()

	hash, e := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if e != nil {
		return e
	}
	acct, e := db.GetAccountByName(c.Context, name)
	switch {
	case errors.Is(e, nodevisor.ErrAccountNotFound):
		acct = &nodevisor.Account{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	case e != nil:
		return e
	}
	acct.PasswordHash = string(hash)
	acct.Admin = c.Bool("admin")
	if e := db.SaveAccount(c.Context, acct); e != nil {
		return e
	}
	fmt.Printf("%s\t%s\n", acct.ID, acct.Name)
	return nil
}

func events(c *cli.Context) error {
	_, db, e := setup(c)
	if e != nil {
		return e
	}
	defer db.Close()

	evs, e := db.RecentEvents(c.Context, c.Int("limit"))
	if e != nil {
		return e
	}
	for _, ev := range evs {
		fmt.Printf("%s  %-16s", ev.Time.Local().Format(time.RFC3339), ev.Name)
		for _, k := range []string{"owner", "server", "actor"} {
			if v, ok := ev.Details[k]; ok {
				fmt.Printf(" %s=%s", k, v)
			}
		}
		fmt.Println()
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "nodevisord"
	app.Usage = "Run and supervise Node.js servers"
	app.HideHelpCommand = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file path",
			EnvVars: []string{config.EnvFile},
		},
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"a"},
			Usage:   "listen address",
		},
	}
	app.Action = serve
	app.Commands = []*cli.Command{
		{
			Name:   "serve",
			Usage:  "serve the API (the default)",
			Action: serve,
		},
		{
			Name:      "useradd",
			Usage:     "create an account, or reset its password",
			ArgsUsage: "<name> <password>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "admin", Usage: "grant administrator rights"},
			},
			Action: userAdd,
		},
		{
			Name:  "events",
			Usage: "show the audit trail",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 50, Usage: "number of events"},
			},
			Action: events,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}
