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
	"bytes"
	"strings"
	"sync"
)

// lineWriter is an io.Writer that breaks its input into lines and hands
// each complete line to emit.  Process pipes deliver arbitrary chunks, so a
// trailing partial line is held until its newline arrives or Flush is
// called.
type lineWriter struct {
	emit func(string)
	buf  []byte
	lock sync.Mutex
}

const maxLineBytes = 64 * 1024

func (w *lineWriter) Write(b []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	// A runaway line without newlines is cut rather than buffered forever.
	if len(w.buf) >= maxLineBytes {
		w.emit(string(w.buf))
		w.buf = nil
	}
	return len(b), nil
}

// Flush emits any buffered partial line.
func (w *lineWriter) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if len(w.buf) != 0 {
		w.emit(strings.TrimRight(string(w.buf), "\r"))
		w.buf = nil
	}
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}
