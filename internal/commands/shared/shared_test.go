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

package shared

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

func TestIsNonInteractive(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{name: "MCPGATE_NON_INTERACTIVE=true", envVars: map[string]string{"MCPGATE_NON_INTERACTIVE": "true"}},
		{name: "CI=true", envVars: map[string]string{"CI": "true"}},
		{name: "CI=1", envVars: map[string]string{"CI": "1"}},
		{name: "GITHUB_ACTIONS=true", envVars: map[string]string{"GITHUB_ACTIONS": "true"}},
		{name: "JENKINS_HOME set", envVars: map[string]string{"JENKINS_HOME": "/var/jenkins"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			assert.True(t, IsNonInteractive())
			assert.True(t, GetHeadless())
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain", err: errors.New("boom"), want: ExitFailure},
		{name: "exit error", err: NewNotFoundError("missing", nil), want: ExitNotFound},
		{name: "wrapped not found", err: fmt.Errorf("lookup: %w", &pkgerrors.NotFoundError{Resource: "server", ID: "x"}), want: ExitNotFound},
		{name: "config error", err: &pkgerrors.ConfigError{Reason: "bad"}, want: ExitInvalidUsage},
		{name: "validation error", err: &pkgerrors.ValidationError{Message: "bad"}, want: ExitInvalidUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestPrintError_Suggestion(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("load: %w", &pkgerrors.ConfigError{Server: "fs", Field: "command", Reason: "missing command"})

	PrintError(&buf, err)

	assert.Contains(t, buf.String(), `config error in server "fs"`)
	assert.Contains(t, buf.String(), "Suggestion: Add a \"command\" field")
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	defer SetOutputForTest(&buf)()

	require.NoError(t, EmitJSONError("mcp status", []JSONError{{Code: "NOT_FOUND", Message: "no such server"}}))

	assert.JSONEq(t, `{
		"@version": "1.0",
		"command": "mcp status",
		"success": false,
		"errors": [{"code": "NOT_FOUND", "message": "no such server"}]
	}`, buf.String())
}

func TestNewJSONError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want JSONError
	}{
		{
			name: "unclassified",
			err:  errors.New("boom"),
			want: JSONError{Code: "ERROR", Message: "boom"},
		},
		{
			name: "registry outage",
			err:  &pkgerrors.RegistryError{StatusCode: 503},
			want: JSONError{Code: "REGISTRY", Message: "registry API returned HTTP 503", Retryable: true},
		},
		{
			name: "config error carries suggestion",
			err:  &pkgerrors.ConfigError{Server: "api", Field: "url", Reason: "required"},
			want: JSONError{
				Code:       "ERROR",
				Message:    `config error in server "api" (field url): required`,
				Suggestion: `Add a "url" field for HTTP servers`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewJSONError(tt.err, "ERROR"))
		})
	}
}

func TestStderrNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewStderrNotifier(&buf)

	n.Notify(context.Background(), "MCP tool execution was cancelled due to timeout")

	assert.Contains(t, buf.String(), "MCP tool execution was cancelled due to timeout")
}
