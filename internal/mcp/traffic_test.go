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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		tag       TrafficTag
		direction Direction
	}{
		{name: "json object", line: `{"jsonrpc":"2.0"}`, tag: TagAssistantText, direction: DirectionIncoming},
		{name: "json array", line: `[1,2]`, tag: TagAssistantText, direction: DirectionIncoming},
		{name: "post request", line: "POST /mcp HTTP/1.1", tag: TagToolTraffic, direction: DirectionOutgoing},
		{name: "get request", line: "GET /sse", tag: TagToolTraffic, direction: DirectionOutgoing},
		{name: "plain log", line: "server listening on stdio", tag: TagGeneric, direction: DirectionNone},
		{name: "leading space is not json", line: ` {"a":1}`, tag: TagGeneric, direction: DirectionNone},
		{name: "empty", line: "", tag: TagGeneric, direction: DirectionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyLine(tt.line)
			assert.Equal(t, tt.tag, got.Tag)
			assert.Equal(t, tt.direction, got.Direction)
			assert.Equal(t, tt.line, got.Text)
		})
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		tag       TrafficTag
		direction Direction
		text      string
	}{
		{
			name:      "outgoing prefix is trusted and stripped",
			message:   `> {"content":"hi"}`,
			tag:       TagToolTraffic,
			direction: DirectionOutgoing,
			text:      `{"content":"hi"}`,
		},
		{
			name:      "incoming prefix is trusted and stripped",
			message:   `< {"name":"read_file"}`,
			tag:       TagAssistantText,
			direction: DirectionIncoming,
			text:      `{"name":"read_file"}`,
		},
		{
			name:      "json with content key",
			message:   `{"content":[{"type":"text"}]}`,
			tag:       TagAssistantText,
			direction: DirectionIncoming,
			text:      `{"content":[{"type":"text"}]}`,
		},
		{
			name:      "json with response key",
			message:   `{"response":"ok"}`,
			tag:       TagAssistantText,
			direction: DirectionIncoming,
			text:      `{"response":"ok"}`,
		},
		{
			name:      "json with name key",
			message:   `{"name":"read_file","arguments":{}}`,
			tag:       TagToolTraffic,
			direction: DirectionOutgoing,
			text:      `{"name":"read_file","arguments":{}}`,
		},
		{
			name:      "json with function key",
			message:   `[{"function":"x"}]`,
			tag:       TagToolTraffic,
			direction: DirectionOutgoing,
			text:      `[{"function":"x"}]`,
		},
		{
			name:      "unclassified json defaults to assistant text",
			message:   `{"id":1}`,
			tag:       TagAssistantText,
			direction: DirectionIncoming,
			text:      `{"id":1}`,
		},
		{
			name:      "http verb",
			message:   "GET https://example.com/sse",
			tag:       TagToolTraffic,
			direction: DirectionOutgoing,
			text:      "GET https://example.com/sse",
		},
		{
			name:      "function call text",
			message:   "calling function(read_file)",
			tag:       TagToolTraffic,
			direction: DirectionOutgoing,
			text:      "calling function(read_file)",
		},
		{
			name:    "generic",
			message: "Secure MCP Filesystem Server running on stdio",
			tag:     TagGeneric,
			text:    "Secure MCP Filesystem Server running on stdio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyMessage(tt.message)
			assert.Equal(t, tt.tag, got.Tag)
			assert.Equal(t, tt.direction, got.Direction)
			assert.Equal(t, tt.text, got.Text)
		})
	}
}

func TestClassification_String(t *testing.T) {
	assert.Equal(t, "> POST /mcp", ClassifyMessage("> POST /mcp").String())
	assert.Equal(t, "< 200 OK", ClassifyMessage("< 200 OK").String())
	assert.Equal(t, "hello", ClassifyMessage("hello").String())
}

type trafficCollector struct {
	mu      sync.Mutex
	entries []TrafficEntry
}

func (c *trafficCollector) consume(e TrafficEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *trafficCollector) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]string, len(c.entries))
	for i, e := range c.entries {
		lines[i] = e.String()
	}
	return lines
}

func TestTrafficLog_Record(t *testing.T) {
	tl := NewTrafficLog(TrafficLogConfig{Debug: true})
	c := &trafficCollector{}
	tl.Subscribe(c.consume)

	tl.Record("fs", "starting up")
	tl.Record("fs", "   ")
	tl.Outgoing("fs", `{"method":"tools/list"}`)
	tl.Incoming("fs", `{"result":{}}`)

	require.Len(t, c.entries, 3)
	assert.Equal(t, "fs", c.entries[0].Server)
	assert.Equal(t, TagGeneric, c.entries[0].Tag)
	assert.Equal(t, TagToolTraffic, c.entries[1].Tag)
	assert.Equal(t, `{"method":"tools/list"}`, c.entries[1].Text)
	assert.Equal(t, TagAssistantText, c.entries[2].Tag)
	assert.False(t, c.entries[2].Timestamp.IsZero())
}

func TestTrafficLog_NilIsSafe(t *testing.T) {
	var tl *TrafficLog
	tl.Record("fs", "line")
	tl.Subscribe(func(TrafficEntry) {})
	assert.Equal(t, http.DefaultTransport, tl.RoundTripper("fs", nil))
}

func TestTrafficLog_RoundTripper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	tl := NewTrafficLog(TrafficLogConfig{})
	c := &trafficCollector{}
	tl.Subscribe(c.consume)

	client := &http.Client{Transport: tl.RoundTripper("remote", nil)}
	req, err := http.NewRequest(http.MethodPost, server.URL+"/mcp", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{
		"> POST " + server.URL + "/mcp",
		`> {"jsonrpc":"2.0","method":"ping"}`,
		"< 202 Accepted",
	}, c.lines())
}
