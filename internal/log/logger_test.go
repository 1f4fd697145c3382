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

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantLevel  string
		wantFormat Format
		wantSource bool
	}{
		{
			name:       "defaults",
			wantLevel:  "info",
			wantFormat: FormatText,
		},
		{
			name:       "debug wins over level",
			env:        map[string]string{"MCPGATE_DEBUG": "1", "MCPGATE_LOG_LEVEL": "error"},
			wantLevel:  "debug",
			wantFormat: FormatText,
			wantSource: true,
		},
		{
			name:       "explicit level and format",
			env:        map[string]string{"MCPGATE_LOG_LEVEL": "WARN", "MCPGATE_LOG_FORMAT": "JSON"},
			wantLevel:  "warn",
			wantFormat: FormatJSON,
		},
		{
			name:       "source flag",
			env:        map[string]string{"MCPGATE_LOG_SOURCE": "1"},
			wantLevel:  "info",
			wantFormat: FormatText,
			wantSource: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"MCPGATE_DEBUG", "MCPGATE_LOG_LEVEL", "MCPGATE_LOG_FORMAT", "MCPGATE_LOG_SOURCE"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := FromEnv()
			assert.Equal(t, tt.wantLevel, cfg.Level)
			assert.Equal(t, tt.wantFormat, cfg.Format)
			assert.Equal(t, tt.wantSource, cfg.AddSource)
		})
	}
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New(&Config{Level: "debug", Format: FormatJSON, Output: &buf}), "supervisor")

	logger.Debug("process started", ServerKey, "fs")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "supervisor", entry["component"])
	assert.Equal(t, "fs", entry[ServerKey])
	assert.Equal(t, "process started", entry["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestTrace_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Trace(New(&Config{Level: "debug", Output: &buf}), "hidden")
	assert.Empty(t, buf.String())

	Trace(New(&Config{Level: "trace", Output: &buf}), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSanitizeHeaders(t *testing.T) {
	out := SanitizeHeaders(map[string]string{
		"Authorization": "Bearer abc",
		"X-Version":     "1",
	})
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "1", out["X-Version"])
}
