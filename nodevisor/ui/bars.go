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
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/nodevisor/nodevisor/nodevisor/util"
	"github.com/nodevisor/nodevisor/rest"
)

// tone is how a server, or the whole fleet, is doing.  Higher tones win
// when several servers are summarized.
type tone int

const (
	toneIdle  tone = iota // stopped, or nothing known
	toneUp                // running
	toneBusy              // between stopped and running
	toneFault             // suspended, or an error to report
	numTones
)

// rowStyles color server rows and panel content.
var rowStyles = [numTones]tcell.Style{
	toneIdle:  tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorBlack),
	toneUp:    tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorBlack),
	toneBusy:  tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorBlack),
	toneFault: tcell.StyleDefault.Foreground(tcell.ColorMaroon).Background(tcell.ColorBlack),
}

// barStyles color the status line of a panel.
var barStyles = [numTones]tcell.Style{
	toneIdle:  tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver),
	toneUp:    tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorGreen).Bold(true),
	toneBusy:  tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow),
	toneFault: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon).Bold(true),
}

// StyleNormal is the style of plain panel content.
var StyleNormal = rowStyles[toneIdle]

var keyStyle = tcell.StyleDefault.
	Foreground(tcell.ColorBlue).
	Background(tcell.ColorSilver).
	Bold(true)

// serverTone classifies one server.
func serverTone(s *rest.ServerInfo) tone {
	switch {
	case s == nil:
		return toneIdle
	case s.Suspended:
		return toneFault
	case util.Running(s):
		return toneUp
	case s.Status == nil || s.Status.State == "stopped":
		return toneIdle
	}
	return toneBusy
}

// tally counts servers by tone.
type tally [numTones]int

func (t *tally) add(s *rest.ServerInfo) tone {
	tn := serverTone(s)
	t[tn]++
	return tn
}

// worst returns the highest tone that has any servers.
func (t *tally) worst() tone {
	for tn := numTones - 1; tn > toneIdle; tn-- {
		if t[tn] != 0 {
			return tn
		}
	}
	return toneIdle
}

// newBar returns a text bar where %N is plain and %A is emphasized.
func newBar(alt tcell.Style) *views.SimpleStyledTextBar {
	b := views.NewSimpleStyledTextBar()
	b.SetStyle(barStyles[toneIdle])
	for _, reg := range []func(rune, tcell.Style){b.RegisterLeftStyle, b.RegisterCenterStyle, b.RegisterRightStyle} {
		reg('N', barStyles[toneIdle])
		reg('A', alt)
	}
	return b
}

// statusBar is the line under the title, colored by tone.
type statusBar struct {
	text string
	tone tone
	*views.SimpleStyledTextBar
}

func newStatusBar() *statusBar {
	return &statusBar{SimpleStyledTextBar: newBar(keyStyle)}
}

func (sb *statusBar) show(tn tone, text string) {
	if tn == sb.tone && text == sb.text {
		return
	}
	sb.tone, sb.text = tn, text
	style := barStyles[tn]
	sb.SetStyle(style)
	sb.RegisterLeftStyle('N', style)
	sb.SetLeft(text)
}

// keyMarkup highlights the bracketed key names in words, escaping any
// percent signs along the way.
func keyMarkup(words []string) string {
	b := make([]rune, 0, 80)
	for i, w := range words {
		esc := false
		if i != 0 && len(w) != 0 {
			b = append(b, ' ')
		}
		for _, r := range w {
			switch {
			case r == '%':
				b = append(b, '%', '%')
			case esc && r == ']':
				b = append(b, '%', 'N', r)
				esc = false
			case !esc && r == '[':
				b = append(b, r, '%', 'A')
				esc = true
			default:
				b = append(b, r)
			}
		}
	}
	return string(b)
}
