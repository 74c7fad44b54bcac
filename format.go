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
	"strings"
	"time"
)

// Severity tags a console line.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarn
	SeverityError
)

var severityNames = []string{
	SeverityInfo:    "info",
	SeveritySuccess: "success",
	SeverityWarn:    "warn",
	SeverityError:   "error",
}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "info"
	}
	return severityNames[s]
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

// ParseSeverity maps a name back to a Severity; unknown names are info.
func ParseSeverity(name string) Severity {
	for i, n := range severityNames {
		if n == name {
			return Severity(i)
		}
	}
	return SeverityInfo
}

// Keywords are matched case-insensitively as substrings, checked in
// order of severity.
var (
	errorWords   = []string{"error", "erro", "exception", "fatal", "failed", "falha", "falhou", "eaddrinuse", "err!"}
	warnWords    = []string{"warn", "aviso", "deprecated", "atenção"}
	successWords = []string{"success", "sucesso", "listening", "started", "ready", "iniciado", "pronto"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Classify guesses the severity of a raw output line.
func Classify(text string) Severity {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, errorWords):
		return SeverityError
	case containsAny(lower, warnWords):
		return SeverityWarn
	case containsAny(lower, successWords):
		return SeveritySuccess
	}
	return SeverityInfo
}

// Line is one formatted console entry.
type Line struct {
	ID       int64     `json:"id,string"`
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Text     string    `json:"text"`
}

// NewLine stamps text with the current time and an explicit severity.
func NewLine(sev Severity, text string) Line {
	return Line{Time: time.Now(), Severity: sev, Text: text}
}

// FormatLine classifies a raw line of process output.
func FormatLine(text string) Line {
	text = strings.TrimRight(text, "\r\n")
	return NewLine(Classify(text), text)
}

// String renders the line the way the dashboard shows it.
func (l Line) String() string {
	return "[" + l.Time.Format("15:04:05") + "] [" +
		strings.ToUpper(l.Severity.String()) + "] " + l.Text
}
