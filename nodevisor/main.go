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

// Command nodevisor is a client for nodevisord.  With no subcommand it
// runs a terminal dashboard.
//
// The flags are
//
//	-a <address>	- the daemon, default is http://127.0.0.1:8321
//	-u <user:pass>	- user name & password for basic auth
//
// Subcommands are
//
//	servers                   - list the servers you can see
//	status [<id> ...]         - show the state of the named servers (or all)
//	info <id>                 - show details of one server
//	create <name>             - create a server
//	delete <id>               - delete a server
//	start|stop|restart|kill <id>
//	log [-f] <id>             - print the console, optionally following it
//	console <id>              - attach to the console interactively
//	input <id> <line>         - send a line to the process
//	put <id> <path> <file>    - upload a file
//	cat <id> <path>           - print a file
//	set <id> <name=value>...  - change startup settings
//	ui                        - the dashboard
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nodevisor/nodevisor"
	"github.com/nodevisor/nodevisor/nodevisor/ui"
	"github.com/nodevisor/nodevisor/nodevisor/util"
	"github.com/nodevisor/nodevisor/rest"
)

const requestTimeout = 30 * time.Second

func newClient(c *cli.Context) (*rest.Client, error) {
	client := rest.NewClient(nil, c.String("address"))
	if auth := c.String("user"); auth != "" {
		a := strings.SplitN(auth, ":", 2)
		if len(a) != 2 {
			return nil, cli.Exit("Bad user:pass supplied", 2)
		}
		client.SetAuth(a[0], a[1])
	}
	return client, nil
}

// withClient adapts fn into a command action taking between lo and hi
// arguments.  A negative hi means there is no upper bound.
func withClient(lo, hi int, fn func(ctx context.Context, client *rest.Client, args []string) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		args := c.Args().Slice()
		if len(args) < lo || (hi >= 0 && len(args) > hi) {
			return cli.Exit(fmt.Sprintf("usage: nodevisor %s %s", c.Command.Name, c.Command.ArgsUsage), 2)
		}
		client, e := newClient(c)
		if e != nil {
			return e
		}
		ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
		defer cancel()
		return fn(ctx, client, args)
	}
}

func showServer(s *rest.ServerInfo) {
	fmt.Printf("%-36s %-24s %-10s %10s\n", s.ID, s.Name,
		util.Status(s), util.FormatDuration(util.Uptime(s)))
}

func listServers(ctx context.Context, client *rest.Client, args []string) error {
	items, e := client.Servers(ctx)
	if e != nil {
		return e
	}
	util.SortServers(items)
	for _, s := range items {
		showServer(s)
	}
	return nil
}

func showStatus(ctx context.Context, client *rest.Client, args []string) error {
	if len(args) == 0 {
		return listServers(ctx, client, args)
	}
	items := []*rest.ServerInfo{}
	for _, id := range args {
		s, e := client.GetServer(ctx, id)
		if e != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", id, e)
			continue
		}
		items = append(items, s)
	}
	util.SortServers(items)
	for _, s := range items {
		showServer(s)
	}
	return nil
}

func showInfo(ctx context.Context, client *rest.Client, args []string) error {
	s, e := client.GetServer(ctx, args[0])
	if e != nil {
		return e
	}
	fmt.Printf("Name:      %s\n", s.Name)
	fmt.Printf("ID:        %s\n", s.ID)
	fmt.Printf("Owner:     %s\n", s.OwnerID)
	fmt.Printf("State:     %s\n", util.Status(s))
	if s.Status != nil && s.Status.Pid != 0 {
		fmt.Printf("Pid:       %d\n", s.Status.Pid)
		fmt.Printf("Uptime:    %s\n", util.FormatDuration(util.Uptime(s)))
	}
	if su := s.Startup; su != nil {
		fmt.Printf("Entry:     %s\n", su.MainFile)
		fmt.Printf("Port:      %s\n", su.Port)
		fmt.Printf("Packages:  %s\n", su.Packages)
	}
	return nil
}

func create(ctx context.Context, client *rest.Client, args []string) error {
	s, e := client.CreateServer(ctx, args[0])
	if e != nil {
		return e
	}
	fmt.Println(s.ID)
	return nil
}

func lifecycle(fn func(*rest.Client, context.Context, string) error) cli.ActionFunc {
	return withClient(1, 1, func(ctx context.Context, client *rest.Client, args []string) error {
		return fn(client, ctx, args[0])
	})
}

func printLog(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: nodevisor log [-f] <id>", 2)
	}
	client, e := newClient(c)
	if e != nil {
		return e
	}
	id := c.Args().First()
	info, e := client.GetLog(c.Context, id)
	if e != nil {
		return e
	}
	var last int64
	for {
		for _, r := range info.Records {
			if r.ID > last {
				fmt.Println(r.String())
				last = r.ID
			}
		}
		if !c.Bool("follow") {
			return nil
		}
		// Line ids only grow, even across a clear.
		if info, e = client.WatchLog(c.Context, id, info); e != nil {
			return e
		}
	}
}

// attach connects the terminal to a server console.  When the daemon
// drops the viewer for falling behind, it reattaches and starts over from
// the fresh history.
func attach(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: nodevisor console <id>", 2)
	}
	client, e := newClient(c)
	if e != nil {
		return e
	}

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	for {
		conn, e := client.AttachConsole(c.Context, c.Args().First())
		if e != nil {
			return e
		}
		again := follow(conn, input)
		conn.Close()
		if !again {
			return nil
		}
		fmt.Println("--- reattaching ---")
	}
}

// follow prints console messages and forwards input until the connection
// ends.  It reports whether the daemon asked the viewer to come back.
func follow(conn *websocket.Conn, input <-chan string) bool {
	msgs := make(chan nodevisor.Message)
	done := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			var msg nodevisor.Message
			if e := conn.ReadJSON(&msg); e != nil {
				done <- e
				return
			}
			select {
			case msgs <- msg:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case line, open := <-input:
			if !open {
				return false
			}
			if conn.WriteJSON(&rest.InputRequest{Type: "input", Line: line}) != nil {
				return false
			}
		case msg := <-msgs:
			printMessage(msg)
		case e := <-done:
			return websocket.IsCloseError(e, websocket.CloseTryAgainLater)
		}
	}
}

func printMessage(msg nodevisor.Message) {
	switch msg.Type {
	case nodevisor.MessageHistory:
		for _, l := range msg.Lines {
			fmt.Println(l.String())
		}
	case nodevisor.MessageLine:
		if msg.Line != nil {
			fmt.Println(msg.Line.String())
		}
	case nodevisor.MessageClear:
		fmt.Println("--- console cleared ---")
	case nodevisor.MessageState:
		fmt.Printf("--- %s ---\n", msg.State)
	}
}

func sendInput(ctx context.Context, client *rest.Client, args []string) error {
	return client.SendInput(ctx, args[0], strings.Join(args[1:], " "))
}

func putFile(ctx context.Context, client *rest.Client, args []string) error {
	b, e := os.ReadFile(args[2])
	if e != nil {
		return e
	}
	return client.WriteFile(ctx, args[0], args[1], b)
}

func catFile(ctx context.Context, client *rest.Client, args []string) error {
	b, e := client.ReadFile(ctx, args[0], args[1])
	if e != nil {
		return e
	}
	_, e = os.Stdout.Write(b)
	return e
}

func setStartup(ctx context.Context, client *rest.Client, args []string) error {
	settings := make(map[string]string)
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return cli.Exit("settings take the form name=value", 2)
		}
		settings[k] = v
	}
	su, e := client.SetStartup(ctx, args[0], settings)
	if e != nil {
		return e
	}
	fmt.Printf("mainFile=%s port=%s packages=%q\n", su.MainFile, su.Port, su.Packages)
	return nil
}

func doUI(c *cli.Context) error {
	client, e := newClient(c)
	if e != nil {
		return e
	}
	logger := zap.NewNop()
	if name := c.String("log"); name != "" {
		zc := zap.NewDevelopmentConfig()
		zc.OutputPaths = []string{name}
		zc.ErrorOutputPaths = []string{name}
		if logger, e = zc.Build(); e != nil {
			return e
		}
		defer logger.Sync()
	}
	app := ui.NewApp(client, c.String("address"))
	app.SetLogger(logger)
	return app.Run()
}

func main() {
	app := cli.NewApp()
	app.Name = "nodevisor"
	app.Usage = "Manage servers run by nodevisord"
	app.HideHelpCommand = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Value:   "http://127.0.0.1:8321",
			Usage:   "nodevisord address",
			EnvVars: []string{"NODEVISOR_ADDR"},
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "user:pass authentication",
			EnvVars: []string{"NODEVISOR_AUTH"},
		},
	}
	logFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "log", Usage: "write a debug log to this file"}
	}
	app.Action = doUI
	app.Commands = []*cli.Command{
		{Name: "servers", Usage: "list servers", Action: withClient(0, 0, listServers)},
		{Name: "status", ArgsUsage: "[<id>...]", Usage: "show server states", Action: withClient(0, -1, showStatus)},
		{Name: "info", ArgsUsage: "<id>", Usage: "show server details", Action: withClient(1, 1, showInfo)},
		{Name: "create", ArgsUsage: "<name>", Usage: "create a server", Action: withClient(1, 1, create)},
		{Name: "delete", ArgsUsage: "<id>", Usage: "delete a server", Action: lifecycle((*rest.Client).DeleteServer)},
		{Name: "start", ArgsUsage: "<id>", Usage: "start a server", Action: lifecycle((*rest.Client).StartServer)},
		{Name: "stop", ArgsUsage: "<id>", Usage: "stop a server", Action: lifecycle((*rest.Client).StopServer)},
		{Name: "restart", ArgsUsage: "<id>", Usage: "restart a server", Action: lifecycle((*rest.Client).RestartServer)},
		{Name: "kill", ArgsUsage: "<id>", Usage: "kill a server", Action: lifecycle((*rest.Client).KillServer)},
		{
			Name:      "log",
			ArgsUsage: "<id>",
			Usage:     "print the console",
			Flags:     []cli.Flag{&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}}},
			Action:    printLog,
		},
		{Name: "console", ArgsUsage: "<id>", Usage: "attach to the console", Action: attach},
		{Name: "input", ArgsUsage: "<id> <line>", Usage: "send a line of input", Action: withClient(2, -1, sendInput)},
		{Name: "put", ArgsUsage: "<id> <path> <file>", Usage: "upload a file", Action: withClient(3, 3, putFile)},
		{Name: "cat", ArgsUsage: "<id> <path>", Usage: "print a file", Action: withClient(2, 2, catFile)},
		{Name: "set", ArgsUsage: "<id> <name=value>...", Usage: "change startup settings", Action: withClient(2, -1, setStartup)},
		{Name: "ui", Usage: "run the dashboard (the default)", Flags: []cli.Flag{logFlag()}, Action: doUI},
	}
	app.Flags = append(app.Flags, logFlag())

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}
