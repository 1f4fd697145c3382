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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	return NewConfigStore(ConfigStoreConfig{Path: filepath.Join(t.TempDir(), "mcp.json")})
}

func TestParse_DefaultsToStdio(t *testing.T) {
	store := newTestStore(t)

	configs, err := store.Parse([]byte(`{"servers":{"fs":{"command":"npx","args":["-y","pkg"]}}}`))
	require.NoError(t, err)
	require.Len(t, configs, 1)

	fs := configs["fs"]
	require.NotNil(t, fs)
	assert.Equal(t, "fs", fs.Name)
	assert.Equal(t, TransportStdio, fs.Transport())
	assert.Equal(t, "npx", fs.Command)
	assert.Equal(t, []string{"-y", "pkg"}, fs.Args)
	assert.True(t, fs.Enabled)
}

func TestParse_Transports(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		want      TransportType
	}{
		{"stdio", "stdio", TransportStdio},
		{"http lowercase", "http", TransportHTTP},
		{"http uppercase", "HTTP", TransportHTTP},
		{"sse hyphen", "http-sse", TransportHTTPSSE},
		{"sse underscore", "HTTP_SSE", TransportHTTPSSE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"mcpServers":{"s":{"transport":"` + tt.transport + `","command":"run","url":"https://example.com/mcp"}}}`
			configs, err := newTestStore(t).Parse([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, configs["s"].Transport())
		})
	}
}

func TestParse_UnknownTransportFallsBackToStdio(t *testing.T) {
	configs, err := newTestStore(t).Parse([]byte(`{"mcpServers":{"s":{"transport":"carrier-pigeon","command":"run"}}}`))
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, configs["s"].Transport())
}

func TestParse_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{
			name:      "stdio without command",
			doc:       `{"mcpServers":{"broken":{"args":["x"]}}}`,
			wantField: "command",
		},
		{
			name:      "stdio with blank command",
			doc:       `{"mcpServers":{"broken":{"command":"  "}}}`,
			wantField: "command",
		},
		{
			name:      "http without url",
			doc:       `{"mcpServers":{"broken":{"transport":"http","command":"ignored"}}}`,
			wantField: "url",
		},
		{
			name:      "sse without url",
			doc:       `{"mcpServers":{"broken":{"transport":"http-sse"}}}`,
			wantField: "url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestStore(t).Parse([]byte(tt.doc))
			require.Error(t, err)

			var cfgErr *pkgerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "broken", cfgErr.Server)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Contains(t, err.Error(), "broken")
		})
	}
}

func TestParse_DocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid json", `{"mcpServers":`},
		{"missing root", `{"other":{}}`},
		{"null root", `{"mcpServers":null}`},
		{"root not object", `{"mcpServers":[1,2]}`},
		{"server not object", `{"mcpServers":{"s":"npx"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestStore(t).Parse([]byte(tt.doc))
			var cfgErr *pkgerrors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestParse_PermissiveOptionalFields(t *testing.T) {
	doc := `{"mcpServers":{"s":{
		"command": "node",
		"args": ["server.js", 8080, null, true],
		"env": {"PORT": 8080, "DEBUG": true, "EMPTY": null},
		"enabled": "false",
		"disabledTools": ["write_file", "read_file", "write_file", ""],
		"workingDirectory": "/srv/mcp"
	}}}`

	configs, err := newTestStore(t).Parse([]byte(doc))
	require.NoError(t, err)

	s := configs["s"]
	assert.Equal(t, []string{"server.js", "8080", "true"}, s.Args)
	assert.Equal(t, map[string]string{"PORT": "8080", "DEBUG": "true"}, s.Env)
	assert.False(t, s.Enabled)
	assert.Equal(t, []string{"read_file", "write_file"}, s.DisabledTools)
	assert.True(t, s.IsToolDisabled("write_file"))
	assert.False(t, s.IsToolDisabled("list_dir"))
	assert.Equal(t, "/srv/mcp", s.WorkingDirectory)
}

func TestParse_InvalidEnabledDefaultsToTrue(t *testing.T) {
	configs, err := newTestStore(t).Parse([]byte(`{"mcpServers":{"s":{"command":"x","enabled":"maybe"}}}`))
	require.NoError(t, err)
	assert.True(t, configs["s"].Enabled)
}

func TestExport_RoundTripWithExtensions(t *testing.T) {
	store := newTestStore(t)

	stdio := NewStdioConfig("fs", "npx", "-y", "@modelcontextprotocol/server-filesystem", "/my docs")
	stdio.Env = map[string]string{"NODE_ENV": "production"}
	stdio.SetDisabledTools([]string{"delete_file"})
	stdio.WorkingDirectory = "/opt/fs"

	remote := NewHTTPConfig("remote", "https://mcp.example.com/v1")
	remote.Headers = map[string]string{"Authorization": "Bearer <token>"}
	remote.Enabled = false

	sse := NewProviderConfig("events", TransportHTTPSSE)
	sse.URL = "https://events.example.com/sse"

	original := map[string]*ProviderConfig{"fs": stdio, "remote": remote, "events": sse}

	data, err := store.Export(original, true)
	require.NoError(t, err)

	parsed, err := store.Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed, 3)

	for name, want := range original {
		got := parsed[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.Transport(), got.Transport(), name)
		assert.Equal(t, want.Command, got.Command, name)
		assert.Equal(t, want.Args, got.Args, name)
		assert.Equal(t, want.Env, got.Env, name)
		assert.Equal(t, want.URL, got.URL, name)
		assert.Equal(t, want.Headers, got.Headers, name)
		assert.Equal(t, want.Enabled, got.Enabled, name)
		assert.Equal(t, want.DisabledTools, got.DisabledTools, name)
		assert.Equal(t, want.WorkingDirectory, got.WorkingDirectory, name)
	}

	assert.Contains(t, string(data), "Bearer <token>")
}

func TestExport_Minimal(t *testing.T) {
	store := newTestStore(t)

	stdio := NewStdioConfig("fs", "npx", "-y", "pkg")
	stdio.SetDisabledTools([]string{"delete_file"})
	stdio.WorkingDirectory = "/opt/fs"
	remote := NewHTTPConfig("remote", "https://mcp.example.com/v1")
	off := NewStdioConfig("off", "uvx", "thing")
	off.Enabled = false

	data, err := store.Export(map[string]*ProviderConfig{"fs": stdio, "remote": remote, "off": off}, false)
	require.NoError(t, err)

	doc := string(data)
	assert.NotContains(t, doc, `"stdio"`)
	assert.NotContains(t, doc, "disabledTools")
	assert.NotContains(t, doc, "workingDirectory")
	assert.NotContains(t, doc, `"enabled": true`)
	assert.Contains(t, doc, `"enabled": false`)
	assert.Contains(t, doc, `"transport": "http"`)

	parsed, err := store.Parse(data)
	require.NoError(t, err)
	assert.True(t, parsed["fs"].Enabled)
	assert.Equal(t, TransportHTTP, parsed["remote"].Transport())
	assert.False(t, parsed["off"].Enabled)
}

func TestConfigStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mcp.json")
	store := NewConfigStore(ConfigStoreConfig{Path: path})

	empty, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Save(map[string]*ProviderConfig{
		"fs": NewStdioConfig("fs", "npx", "-y", "pkg"),
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, loaded, "fs")
	assert.Equal(t, "npx", loaded["fs"].Command)
}

func TestProviderConfig_Clone(t *testing.T) {
	cfg := NewHTTPConfig("remote", "https://x/mcp")
	cfg.Headers = map[string]string{"A": "1"}

	clone := cfg.Clone()
	clone.Headers["A"] = "2"

	assert.Equal(t, "1", cfg.Headers["A"])
	assert.Equal(t, TransportHTTP, clone.Transport())
}

func TestRedactValues(t *testing.T) {
	out := RedactValues(map[string]string{"GITHUB_TOKEN": "ghp_x", "PORT": "80"})
	assert.Equal(t, "***REDACTED***", out["GITHUB_TOKEN"])
	assert.Equal(t, "80", out["PORT"])
}

func TestSortedNames(t *testing.T) {
	names := SortedNames(map[string]*ProviderConfig{"b": nil, "a": nil, "c": nil})
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
