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

package ui

import (
	"github.com/gdamore/tcell/v2/views"

	"github.com/nodevisor/nodevisor/nodevisor/util"
	"github.com/nodevisor/nodevisor/rest"
)

// Panel is the frame every screen shares: a title naming the screen and
// the daemon, a status line, and the keys that work on the screen.
type Panel struct {
	title  *views.SimpleStyledTextBar
	status *statusBar
	keys   *views.SimpleStyledTextBar
	app    *App

	views.Panel
}

func (p *Panel) Init(app *App) {
	p.app = app
	p.title = newBar(keyStyle)
	p.title.SetCenter(" ")
	p.title.SetRight(app.GetAppName())
	p.status = newStatusBar()
	p.keys = newBar(keyStyle)

	p.Panel.SetTitle(p.title)
	p.Panel.SetMenu(p.status)
	p.Panel.SetStatus(p.keys)
}

func (p *Panel) App() *App {
	return p.app
}

func (p *Panel) SetTitle(title string) {
	p.title.SetCenter(title)
}

func (p *Panel) SetKeys(words []string) {
	p.keys.SetLeft(keyMarkup(words))
}

// report shows text on the status line.
func (p *Panel) report(tn tone, text string) {
	p.status.show(tn, text)
}

// reportServer shows the state of one server, unless the application has
// a notice pending, which takes precedence.
func (p *Panel) reportServer(s *rest.ServerInfo, text string) {
	if n := p.app.Notice(); n != "" {
		p.report(toneFault, n)
		return
	}
	if text == "" {
		text = util.Status(s)
	}
	p.report(serverTone(s), text)
}
