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

// Package ui is the terminal dashboard for nodevisor.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
	"go.uber.org/zap"

	"github.com/nodevisor/nodevisor/nodevisor/util"
	"github.com/nodevisor/nodevisor/rest"
)

// actionTimeout bounds each request made on behalf of a key press.
const actionTimeout = 10 * time.Second

type App struct {
	app       *views.Application
	view      views.View
	panel     views.Widget
	info      *InfoPanel
	help      *HelpPanel
	log       *LogPanel
	main      *MainPanel
	auth      *AuthPanel
	client    *rest.Client
	logger    *zap.Logger
	err       error
	items     []*rest.ServerInfo
	notice    string
	noticeAt  time.Time
	logID     string
	logInfo   *rest.LogInfo
	logErr    error
	logCancel context.CancelFunc
	kick      chan struct{}

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowInfo(id string) {
	a.info.SetID(id)
	a.show(a.info)
}

func (a *App) ShowLog(id string) {
	if a.logCancel != nil {
		a.logCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.logInfo = nil
	a.logErr = nil
	a.logID = id
	a.logCancel = cancel
	a.log.SetID(id)
	go a.refreshLog(ctx, id)

	a.show(a.log)
}

func (a *App) ShowMain() {
	a.show(a.main)
}

func (a *App) ShowAuth() {
	a.auth.ResetFields()
	a.show(a.auth)
}

// SetUserPassword changes the credentials and refreshes right away.
func (a *App) SetUserPassword(user, pass string) {
	a.client.SetAuth(user, pass)
	a.err = nil
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// act runs fn in the background, reporting a failure on the status bar.
func (a *App) act(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		e := fn(ctx)
		if e != nil {
			a.Debug("action failed", zap.String("action", what), zap.Error(e))
		}
		a.app.PostFunc(func() {
			if e != nil {
				a.notice = fmt.Sprintf("%s failed: %v", what, e)
			} else {
				a.notice = ""
			}
			a.noticeAt = time.Now()
			a.app.Update()
		})
	}()
}

func (a *App) StartServer(id string) {
	a.act("Start", func(ctx context.Context) error { return a.client.StartServer(ctx, id) })
}

func (a *App) StopServer(id string) {
	a.act("Stop", func(ctx context.Context) error { return a.client.StopServer(ctx, id) })
}

func (a *App) RestartServer(id string) {
	a.act("Restart", func(ctx context.Context) error { return a.client.RestartServer(ctx, id) })
}

func (a *App) KillServer(id string) {
	a.act("Kill", func(ctx context.Context) error { return a.client.KillServer(ctx, id) })
}

func (a *App) SendInput(id string, line string) {
	a.act("Input", func(ctx context.Context) error { return a.client.SendInput(ctx, id, line) })
}

// Notice returns the outcome of the last failed action, for a while.
func (a *App) Notice() string {
	if a.notice != "" && time.Since(a.noticeAt) < 10*time.Second {
		return a.notice
	}
	return ""
}

func (a *App) Quit() {
	/* This just posts the quit event. */
	a.app.Quit()
}

func (a *App) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a.logger = logger
}

func (a *App) Debug(msg string, fields ...zap.Field) {
	a.logger.Debug(msg, fields...)
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) GetClient() *rest.Client {
	return a.client
}

func (a *App) GetAppName() string {
	return "Nodevisor v1.0"
}

func NewApp(client *rest.Client, url string) *App {

	app := &App{}
	app.app = &views.Application{}
	app.client = client
	app.logger = zap.NewNop()
	app.kick = make(chan struct{}, 1)
	app.info = NewInfoPanel(app)
	app.help = NewHelpPanel(app)
	app.log = NewLogPanel(app)
	app.main = NewMainPanel(app, url)
	app.auth = NewAuthPanel(app, url)
	app.panel = app.main

	go app.refresh()
	return app
}

// refresh keeps the app items current

func (a *App) getItems() ([]*rest.ServerInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	items, e := a.client.Servers(ctx)
	if e != nil {
		return nil, e
	}
	util.SortServers(items)
	return items, nil
}

func (a *App) refresh() {
	client := a.client
	etag := ""
	for {
		items, e := a.getItems()

		a.app.PostFunc(func() {
			a.items = items
			a.err = e
			a.app.Update()
		})

		if e != nil {
			etag = ""
			select {
			case <-a.kick:
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if etag == "" {
			ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
			_, etag, e = client.Info(ctx)
			cancel()
			if e != nil {
				continue
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		etag, e = client.Watch(ctx, etag)
		cancel()
		if e != nil {
			etag = ""
			time.Sleep(2 * time.Second)
		}
	}
}

func (a *App) refreshLog(ctx context.Context, id string) {
	info, e := a.client.GetLog(ctx, id)

	for {
		a.app.PostFunc(func() {
			if a.logID == id {
				a.logInfo = info
				a.logErr = e
				a.app.Update()
			}
		})
		select {
		case <-ctx.Done():
			return
		default:
		}
		if e != nil {
			time.Sleep(2 * time.Second)
			info, e = a.client.GetLog(ctx, id)
			continue
		}
		info, e = a.client.WatchLog(ctx, id, info)
	}
}

func (a *App) GetItems() ([]*rest.ServerInfo, error) {
	return a.items, a.err
}

func (a *App) GetItem(id string) (*rest.ServerInfo, error) {
	if a.err != nil {
		return nil, a.err
	}
	for _, i := range a.items {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, errors.New("Server not found")
}

func (a *App) GetLog(id string) (*rest.LogInfo, error) {
	if a.logID == id {
		return a.logInfo, a.logErr
	}
	return nil, nil
}

// unauthorized reports whether e is an authentication failure.
func unauthorized(e error) bool {
	var re *rest.Error
	return errors.As(e, &re) && re.Code == 401
}

func (a *App) Run() error {
	a.Debug("starting user interface")
	a.app.SetRootWidget(a)
	a.ShowMain()
	go func() {
		// Give us periodic updates
		for {
			a.app.Update()
			time.Sleep(time.Second)
		}
	}()
	a.Debug("starting app loop")
	return a.app.Run()
}
