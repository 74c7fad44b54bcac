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
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/nodevisor/nodevisor/nodevisor/util"
	"github.com/nodevisor/nodevisor/rest"
)

// MainPanel implements a Widget as a Panel, but provides the data
// model and handling for the content area, using data loaded from a
// nodevisor REST API service.
type MainPanel struct {
	content  *views.CellView
	selected *rest.ServerInfo
	tally    tally
	width    int
	height   int
	curx     int
	cury     int
	lines    []string
	styles   []tcell.Style
	items    []*rest.ServerInfo

	Panel
}

// mainModel provides the model for a CellArea.
type mainModel struct {
	m *MainPanel
}

func NewMainPanel(app *App, server string) *MainPanel {
	m := &MainPanel{}

	m.Panel.Init(app)
	m.content = views.NewCellView()
	m.SetContent(m.content)

	m.content.SetModel(&mainModel{m})
	m.content.SetStyle(StyleNormal)

	m.SetTitle(server)
	m.SetKeys([]string{"[Q] Quit"})

	return m
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	sel := m.selected
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			m.unselect()
			return true
		case tcell.KeyF1:
			m.App().ShowHelp()
			return true
		case tcell.KeyEnter:
			if sel != nil {
				m.App().ShowInfo(sel.ID)
				return true
			}
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				m.App().Quit()
				return true
			case 'H', 'h':
				m.App().ShowHelp()
				return true
			}
			if sel == nil {
				break
			}
			if handleServerKey(m.App(), sel, ev.Rune(), true) {
				return true
			}
		}
	}
	return m.Panel.HandleEvent(ev)
}

// handleServerKey runs the action bound to r against s.  withInfo
// includes the key that opens the details panel.
func handleServerKey(app *App, s *rest.ServerInfo, r rune, withInfo bool) bool {
	canRun := s.Permissions.ViewConsole
	running := util.Running(s)
	switch r {
	case 'I', 'i':
		if withInfo {
			app.ShowInfo(s.ID)
			return true
		}
	case 'L', 'l':
		if canRun {
			app.ShowLog(s.ID)
			return true
		}
	case 'S', 's':
		if canRun && !running {
			app.StartServer(s.ID)
			return true
		}
	case 'T', 't':
		if canRun && running {
			app.StopServer(s.ID)
			return true
		}
	case 'R', 'r':
		if canRun {
			app.RestartServer(s.ID)
			return true
		}
	case 'K', 'k':
		if canRun && running {
			app.KillServer(s.ID)
			return true
		}
	}
	return false
}

// serverKeys returns the keybar words for the actions allowed on s.
func serverKeys(s *rest.ServerInfo, words []string) []string {
	if !s.Permissions.ViewConsole {
		return words
	}
	words = append(words, "[L] Log")
	if util.Running(s) {
		words = append(words, "[T] Stop", "[K] Kill")
	} else {
		words = append(words, "[S] Start")
	}
	return append(words, "[R] Restart")
}

// Model items
func (model *mainModel) GetCell(x, y int) (rune, tcell.Style, []rune, int) {
	var ch rune
	var style tcell.Style

	m := model.m

	if y < 0 || y >= len(m.lines) {
		return ch, StyleNormal, nil, 1
	}

	if x >= 0 && x < len(m.lines[y]) {
		ch = rune(m.lines[y][x])
	} else {
		ch = ' '
	}
	style = m.styles[y]
	if m.items[y] == m.selected {
		style = style.Reverse(true)
	}
	return ch, style, nil, 1
}

func (model *mainModel) GetBounds() (int, int) {
	// This assumes that all content is displayable runes of width 1.
	m := model.m
	y := len(m.lines)
	x := 0
	for _, l := range m.lines {
		if x < len(l) {
			x = len(l)
		}
	}
	return x, y
}

func (model *mainModel) GetCursor() (int, int, bool, bool) {
	m := model.m
	return m.curx, m.cury, true, false
}

func (model *mainModel) MoveCursor(offx, offy int) {

	m := model.m
	m.curx += offx
	m.cury += offy
	m.updateCursor(true)
}

func (model *mainModel) SetCursor(x, y int) {
	m := model.m
	m.curx = x
	m.cury = y
	m.updateCursor(true)
}

func (m *MainPanel) unselect() {
	m.cury = 0
	m.curx = 0
	m.updateCursor(false)
}

func (m *MainPanel) updateCursor(selected bool) {
	if m.curx > m.width-1 {
		m.curx = m.width - 1
	}
	if m.cury > m.height-1 {
		m.cury = m.height - 1
	}
	if m.curx < 0 {
		m.curx = 0
	}
	if m.cury < 0 {
		m.cury = 0
	}
	if selected && m.height > 0 {
		if m.selected == nil {
			m.curx = 0
			m.cury = 0
		}
		m.selected = m.items[m.cury]
	} else {
		m.selected = nil
	}
}

// update is called to update content, e.g. in response to Draw() or
// as part of another update.  It is called with the AppLock held.
func (m *MainPanel) update() {

	items, err := m.App().GetItems()
	m.items = items

	// preserve selected item
	if sel := m.selected; sel != nil {
		m.selected = nil
		for cury, item := range m.items {
			if item.ID == sel.ID {
				m.selected = item
				m.cury = cury
			}
		}
	}
	if err != nil {
		if unauthorized(err) {
			m.App().ShowAuth()
			return
		}
		m.report(toneFault, fmt.Sprintf("Cannot load servers: %v", err))
		m.lines = []string{}
		m.styles = []tcell.Style{}
		m.height = 0
		return
	}

	lines := make([]string, 0, len(m.items))
	styles := make([]tcell.Style, 0, len(m.items))

	m.tally = tally{}

	m.height = 0
	m.width = 0

	for _, info := range items {
		state := util.Status(info)
		line := fmt.Sprintf("%-24s %-10s %10s   %s",
			info.Name, state,
			util.FormatDuration(util.Uptime(info)), info.OwnerID)

		if len(line) > m.width {
			m.width = len(line)
		}
		m.height++

		lines = append(lines, line)
		styles = append(styles, rowStyles[m.tally.add(info)])
	}

	m.lines = lines
	m.styles = styles

	if n := m.App().Notice(); n != "" {
		m.report(toneFault, n)
	} else {
		t := &m.tally
		m.report(t.worst(), fmt.Sprintf(
			"%6d Servers %6d Running %6d Busy %6d Stopped %6d Suspended",
			len(m.items), t[toneUp], t[toneBusy], t[toneIdle], t[toneFault]))
	}

	words := []string{"[Q] Quit", "[H] Help"}

	if item := m.selected; item != nil {
		words = append(words, "[I] Info")
		words = serverKeys(item, words)
	}
	m.SetKeys(words)
}
