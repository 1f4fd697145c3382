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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tombee/mcpgate/internal/log"
)

// TrafficTag is the coarse category of a traffic line.
type TrafficTag string

const (
	TagAssistantText TrafficTag = "ASSISTANT_TEXT"
	TagToolTraffic   TrafficTag = "TOOL_TRAFFIC"
	TagGeneric       TrafficTag = "GENERIC"
)

// Direction is the flow of a traffic line relative to the gateway.
type Direction string

const (
	DirectionNone     Direction = ""
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

const (
	outgoingPrefix = "> "
	incomingPrefix = "< "
)

// Classification is the result of tagging a raw line.
type Classification struct {
	Tag       TrafficTag `json:"tag"`
	Direction Direction  `json:"direction,omitempty"`
	Text      string     `json:"text"`
}

// Marker renders the direction as the "> " / "< " prefix used in logs.
func (c Classification) Marker() string {
	switch c.Direction {
	case DirectionIncoming:
		return incomingPrefix
	case DirectionOutgoing:
		return outgoingPrefix
	}
	return ""
}

// String renders the classified line with its direction marker.
func (c Classification) String() string {
	return c.Marker() + c.Text
}

// ClassifyLine tags a raw log line. JSON-looking lines are treated as
// incoming assistant text, HTTP request lines as outgoing tool traffic,
// and everything else as generic. This is a heuristic over opaque text.
func ClassifyLine(line string) Classification {
	switch {
	case strings.HasPrefix(line, "{") || strings.HasPrefix(line, "["):
		return Classification{Tag: TagAssistantText, Direction: DirectionIncoming, Text: line}
	case isHTTPRequestLine(line):
		return Classification{Tag: TagToolTraffic, Direction: DirectionOutgoing, Text: line}
	}
	return Classification{Tag: TagGeneric, Text: line}
}

// ClassifyMessage tags a structured traffic message. A leading "> " or
// "< " is trusted as the direction and stripped. Otherwise JSON content
// is inspected for response keys versus tool-call keys.
func ClassifyMessage(message string) Classification {
	switch {
	case strings.HasPrefix(message, outgoingPrefix):
		return Classification{Tag: TagToolTraffic, Direction: DirectionOutgoing, Text: message[len(outgoingPrefix):]}
	case strings.HasPrefix(message, incomingPrefix):
		return Classification{Tag: TagAssistantText, Direction: DirectionIncoming, Text: message[len(incomingPrefix):]}
	}

	if strings.HasPrefix(message, "{") || strings.HasPrefix(message, "[") {
		switch {
		case strings.Contains(message, `"content":`) || strings.Contains(message, `"response":`):
			return Classification{Tag: TagAssistantText, Direction: DirectionIncoming, Text: message}
		case strings.Contains(message, `"function":`) || strings.Contains(message, `"name":`):
			return Classification{Tag: TagToolTraffic, Direction: DirectionOutgoing, Text: message}
		}
		return Classification{Tag: TagAssistantText, Direction: DirectionIncoming, Text: message}
	}

	if isHTTPRequestLine(message) || strings.Contains(message, "function(") {
		return Classification{Tag: TagToolTraffic, Direction: DirectionOutgoing, Text: message}
	}
	return Classification{Tag: TagGeneric, Text: message}
}

func isHTTPRequestLine(line string) bool {
	return strings.HasPrefix(line, "POST") || strings.HasPrefix(line, "GET")
}

// TrafficEntry is one classified line attributed to a provider.
type TrafficEntry struct {
	Server    string    `json:"server"`
	Timestamp time.Time `json:"timestamp"`
	Classification
}

// TrafficConsumer receives classified traffic entries.
type TrafficConsumer func(TrafficEntry)

// TrafficLogConfig configures a TrafficLog.
type TrafficLogConfig struct {
	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger

	// Debug mirrors every entry to the logger at debug level.
	Debug bool
}

// TrafficLog collects provider stderr, logging notifications and HTTP
// exchanges, classifies them and fans them out to consumers.
type TrafficLog struct {
	logger *slog.Logger
	debug  bool

	mu        sync.RWMutex
	consumers []TrafficConsumer
}

// NewTrafficLog creates a traffic log.
func NewTrafficLog(cfg TrafficLogConfig) *TrafficLog {
	return &TrafficLog{
		logger: log.WithComponent(cfg.Logger, "traffic"),
		debug:  cfg.Debug,
	}
}

// Subscribe registers a consumer.
func (l *TrafficLog) Subscribe(c TrafficConsumer) {
	if l == nil || c == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumers = append(l.consumers, c)
}

// Record classifies a message from server and dispatches it. Blank lines
// are dropped.
func (l *TrafficLog) Record(server, message string) {
	if l == nil || strings.TrimSpace(message) == "" {
		return
	}

	entry := TrafficEntry{
		Server:         server,
		Timestamp:      time.Now(),
		Classification: ClassifyMessage(message),
	}
	recordTraffic(string(entry.Tag))

	if l.debug {
		l.logger.Debug(entry.String(), log.ServerKey, server, "tag", entry.Tag)
	}

	l.mu.RLock()
	consumers := append([]TrafficConsumer(nil), l.consumers...)
	l.mu.RUnlock()

	for _, c := range consumers {
		c(entry)
	}
}

// Outgoing records a line sent to server.
func (l *TrafficLog) Outgoing(server, line string) {
	l.Record(server, outgoingPrefix+line)
}

// Incoming records a line received from server.
func (l *TrafficLog) Incoming(server, line string) {
	l.Record(server, incomingPrefix+line)
}

// maxLoggedBody caps how much of a request body is copied into the log.
const maxLoggedBody = 64 * 1024

// RoundTripper wraps next so every HTTP exchange with server is recorded.
func (l *TrafficLog) RoundTripper(server string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if l == nil {
		return next
	}
	return &trafficTransport{log: l, server: server, next: next}
}

type trafficTransport struct {
	log    *TrafficLog
	server string
	next   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *trafficTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.log.Outgoing(t.server, fmt.Sprintf("%s %s", req.Method, req.URL.Redacted()))

	if body := peekBody(req); body != "" {
		t.log.Outgoing(t.server, body)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.log.Incoming(t.server, "error: "+err.Error())
		return nil, err
	}

	t.log.Incoming(t.server, resp.Status)
	return resp, nil
}

// peekBody returns the request body without consuming it, when the
// request supports rewinding.
func peekBody(req *http.Request) string {
	if req.Body == nil || req.GetBody == nil {
		return ""
	}
	rc, err := req.GetBody()
	if err != nil {
		return ""
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, maxLoggedBody)); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
