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
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/nodevisor/nodevisor/nodevisor/util"
	"github.com/nodevisor/nodevisor/rest"
)

type InfoPanel struct {
	text *views.TextArea
	info *rest.ServerInfo
	id   string
	err  error // last error retrieving state

	Panel
}

func NewInfoPanel(app *App) *InfoPanel {
	i := &InfoPanel{}
	i.Panel.Init(app)

	i.text = views.NewTextArea()
	i.text.EnableCursor(false)
	i.text.SetStyle(StyleNormal)
	i.SetContent(i.text)
	i.SetKeys([]string{"[ESC] Main", "[H] Help"})

	return i
}

func (i *InfoPanel) Draw() {
	i.update()
	i.Panel.Draw()
}

func (i *InfoPanel) HandleEvent(ev tcell.Event) bool {
	info := i.info
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			i.app.ShowMain()
			return true
		case tcell.KeyF1:
			i.app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				i.app.ShowMain()
				return true
			case 'H', 'h':
				i.app.ShowHelp()
				return true
			}
			if info != nil && handleServerKey(i.app, info, ev.Rune(), false) {
				return true
			}
		}
	}
	return i.Panel.HandleEvent(ev)
}

func (i *InfoPanel) SetID(id string) {
	i.id = id
	i.info = nil
	i.err = nil
}

// rights lists the names of the permissions that are granted.
func rights(s *rest.ServerInfo) string {
	p := s.Permissions
	names := []string{}
	for _, r := range []struct {
		ok   bool
		name string
	}{
		{p.ViewConsole, "console"},
		{p.ViewFiles, "view-files"},
		{p.EditFiles, "edit-files"},
		{p.ViewSettings, "view-settings"},
		{p.EditSettings, "edit-settings"},
		{p.ViewUsers, "view-users"},
		{p.EditUsers, "edit-users"},
		{p.ViewStartup, "view-startup"},
		{p.EditStartup, "edit-startup"},
	} {
		if r.ok {
			names = append(names, r.name)
		}
	}
	return strings.Join(names, " ")
}

// update must be called with AppLock held.
func (i *InfoPanel) update() {

	s, e := i.app.GetItem(i.id)
	i.info = s
	i.err = e
	words := []string{"[ESC] Main", "[H] Help"}

	if s == nil {
		i.SetTitle("Details")
		if i.err != nil {
			i.report(toneFault, fmt.Sprintf("No data: %v", i.err))
		} else {
			i.report(toneIdle, "Loading...")
		}
		i.text.SetLines(nil)
		i.SetKeys(words)
		return
	}
	i.SetTitle("Details for " + s.Name)

	i.reportServer(s, "")

	lines := make([]string, 0, 16)
	add := func(label string, v interface{}) {
		lines = append(lines, fmt.Sprintf("%13s %v", label+":", v))
	}
	add("Name", s.Name)
	add("ID", s.ID)
	add("Owner", s.OwnerID)
	add("State", util.Status(s))
	if st := s.Status; st != nil {
		if st.Pid != 0 {
			add("Pid", st.Pid)
		}
		if util.Running(s) {
			add("Uptime", util.FormatDuration(util.Uptime(s)))
		}
		add("Viewers", st.Viewers)
	}
	if su := s.Startup; su != nil {
		add("Entry", su.MainFile)
		add("Port", su.Port)
		if su.Packages != "" {
			add("Packages", su.Packages)
		}
	}
	add("Created", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	add("Updated", s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	add("Rights", rights(s))

	i.text.SetLines(lines)

	i.SetKeys(serverKeys(s, words))
}
