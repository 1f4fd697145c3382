// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// DefaultConsoleLines is the number of output lines kept per provider.
const DefaultConsoleLines = 1000

// stderrPrefix marks lines read from a provider's stderr.
const stderrPrefix = "[ERROR] "

// Stream identifies which pipe a console line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// ConsoleLine is one line of provider output.
type ConsoleLine struct {
	Timestamp time.Time `json:"timestamp"`
	Stream    Stream    `json:"stream"`
	Text      string    `json:"text"`
}

// String renders the line as it appears in the console, with stderr lines
// marked as errors.
func (l ConsoleLine) String() string {
	if l.Stream == StreamStderr {
		return stderrPrefix + l.Text
	}
	return l.Text
}

// ConsoleBuffer is a fixed-size circular buffer of provider output lines.
type ConsoleBuffer struct {
	mu    sync.RWMutex
	lines []ConsoleLine
	head  int
	tail  int
	size  int
	count int
}

// NewConsoleBuffer creates a buffer holding at most capacity lines.
func NewConsoleBuffer(capacity int) *ConsoleBuffer {
	if capacity <= 0 {
		capacity = DefaultConsoleLines
	}
	return &ConsoleBuffer{
		lines: make([]ConsoleLine, capacity),
		size:  capacity,
	}
}

// Add appends a line, evicting the oldest when full.
func (b *ConsoleBuffer) Add(line ConsoleLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.tail] = line
	b.tail = (b.tail + 1) % b.size

	if b.count < b.size {
		b.count++
	} else {
		b.head = (b.head + 1) % b.size
	}
}

// Lines returns the buffered lines, oldest first.
func (b *ConsoleBuffer) Lines() []ConsoleLine {
	return b.Last(-1)
}

// Last returns the newest n lines, oldest first. A negative n returns all.
func (b *ConsoleBuffer) Last(n int) []ConsoleLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n < 0 || n > b.count {
		n = b.count
	}

	result := make([]ConsoleLine, n)
	start := b.count - n
	for i := 0; i < n; i++ {
		result[i] = b.lines[(b.head+start+i)%b.size]
	}
	return result
}

// String renders the buffer as newline-terminated text.
func (b *ConsoleBuffer) String() string {
	var sb strings.Builder
	for _, line := range b.Lines() {
		sb.WriteString(line.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Len returns the number of buffered lines.
func (b *ConsoleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Clear removes all lines.
func (b *ConsoleBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.tail = 0
	b.count = 0
}

// lineWriter splits a byte stream into lines and hands each one to emit.
// A trailing partial line is held until the next newline or Flush.
type lineWriter struct {
	mu      sync.Mutex
	pending []byte
	emit    func(string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

// Write implements io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.pending[:i]), "\r")
		w.pending = w.pending[i+1:]
		w.emit(line)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) > 0 {
		w.emit(strings.TrimRight(string(w.pending), "\r"))
		w.pending = nil
	}
}
