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

// maxInput bounds a line typed into the console.
const maxInput = 1024

// LogPanel shows the console of one server.  Pressing '>' starts a line
// of input, which ENTER sends to the process.
type LogPanel struct {
	text     *views.TextArea
	info     *rest.ServerInfo
	id       string
	typing   bool
	input    []rune
	lastSeen int64

	Panel
}

func NewLogPanel(app *App) *LogPanel {
	p := &LogPanel{}

	p.Panel.Init(app)
	p.SetKeys([]string{"[ESC] Main", "[H] Help"})

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)
	p.input = make([]rune, 0, 128)

	return p
}

func (p *LogPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *LogPanel) handleInput(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEsc:
		p.typing = false
	case tcell.KeyEnter:
		if p.info != nil {
			p.app.SendInput(p.info.ID, string(p.input))
		}
		p.typing = false
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(p.input) > 0 {
			p.input = p.input[:len(p.input)-1]
		}
	case tcell.KeyCtrlU:
		p.input = p.input[:0]
	case tcell.KeyRune:
		if len(p.input) < maxInput {
			p.input = append(p.input, ev.Rune())
		}
	default:
		return false
	}
	return true
}

func (p *LogPanel) HandleEvent(ev tcell.Event) bool {
	info := p.info
	app := p.app
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if p.typing {
			return p.handleInput(ev)
		}
		switch ev.Key() {
		case tcell.KeyEsc:
			app.ShowMain()
			return true
		case tcell.KeyF1:
			app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				app.ShowMain()
				return true
			case 'H', 'h':
				app.ShowHelp()
				return true
			case '>':
				if info != nil && util.Running(info) {
					p.typing = true
					p.input = p.input[:0]
					return true
				}
			case 'L', 'l':
				// already here
				return true
			}
			if info != nil && handleServerKey(app, info, ev.Rune(), true) {
				return true
			}
		}
	}
	return p.Panel.HandleEvent(ev)
}

func (p *LogPanel) SetID(id string) {
	p.SetTitle("Loading")
	p.text.SetLines(nil)
	p.id = id
	p.typing = false
	p.lastSeen = 0
}

// update must be called with AppLock held.
func (p *LogPanel) update() {

	info, e1 := p.app.GetItem(p.id)
	loginfo, e2 := p.app.GetLog(p.id)
	p.info = info

	words := []string{"[ESC] Main", "[H] Help"}

	if info == nil || loginfo == nil {
		e := e2
		if e == nil {
			e = e1
		}
		if e != nil {
			p.report(toneFault, fmt.Sprintf("No data: %v", e))
		} else {
			p.report(toneIdle, "Loading ...")
		}
		p.text.SetLines([]string{""})
		p.SetKeys(words)
		return
	}
	p.SetTitle("Console for " + info.Name)

	if len(loginfo.Records) > 0 {
		last := loginfo.Records[len(loginfo.Records)-1].ID
		if last != p.lastSeen {
			lines := make([]string, 0, len(loginfo.Records))
			for _, r := range loginfo.Records {
				lines = append(lines, r.String())
			}
			p.text.SetLines(lines)
			// follow the tail
			p.text.MakeVisible(0, len(lines)-1)
			p.lastSeen = last
		}
	} else if p.lastSeen != 0 {
		p.text.SetLines(nil)
		p.lastSeen = 0
	}

	if p.typing {
		p.report(toneIdle, "> "+string(p.input)+"_")
		p.SetKeys([]string{"[ENTER] Send", "[ESC] Cancel"})
		return
	}
	p.reportServer(info, "")

	words = append(words, "[I] Info")
	if util.Running(info) {
		words = append(words, "[>] Input")
	}
	words = serverKeys(info, words)
	p.SetKeys(words)
}
