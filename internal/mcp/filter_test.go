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

package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/mcpgate/internal/mcp"
	mcptest "github.com/tombee/mcpgate/internal/mcp/testing"
)

func provider(name string, enabled bool, disabled ...string) *mcp.ProviderConfig {
	p := mcp.NewStdioConfig(name, name+"-server")
	p.Enabled = enabled
	p.SetDisabledTools(disabled)
	return p
}

func TestDisabledTools(t *testing.T) {
	got := mcp.DisabledTools([]*mcp.ProviderConfig{
		provider("a", true, "rm", "deploy"),
		provider("b", false, "search"),
		provider("c", true, "deploy", "exec"),
		nil,
	})

	assert.Len(t, got, 3)
	for _, name := range []string{"rm", "deploy", "exec"} {
		assert.Contains(t, got, name)
	}
	assert.NotContains(t, got, "search")
}

func TestToolFilter_ListTools(t *testing.T) {
	tests := []struct {
		name      string
		providers []*mcp.ProviderConfig
		want      []string
	}{
		{
			name: "nothing disabled",
			providers: []*mcp.ProviderConfig{
				provider("a", true),
			},
			want: []string{"read", "write", "exec"},
		},
		{
			name: "union across enabled providers",
			providers: []*mcp.ProviderConfig{
				provider("a", true, "write"),
				provider("b", true, "exec"),
			},
			want: []string{"read"},
		},
		{
			name: "disabled provider does not contribute",
			providers: []*mcp.ProviderConfig{
				provider("a", false, "read", "write"),
			},
			want: []string{"read", "write", "exec"},
		},
		{
			name:      "no providers",
			providers: nil,
			want:      []string{"read", "write", "exec"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := mcptest.NewStaticSource("read", "write", "exec")
			providers := tt.providers
			filter := mcp.NewToolFilter(inner, func() []*mcp.ProviderConfig { return providers }, nil)

			assert.Equal(t, tt.want, toolNames(t, filter))
		})
	}
}

func TestToolFilter_KeepsExecutors(t *testing.T) {
	inner := mcptest.NewStaticSource("read", "write")
	filter := mcp.NewToolFilter(inner, func() []*mcp.ProviderConfig {
		return []*mcp.ProviderConfig{provider("a", true, "write")}
	}, nil)

	got, err := mcp.Execute(context.Background(), filter, "read", "{}", "")
	require.NoError(t, err)
	assert.Equal(t, "read result", got)

	_, err = mcp.Execute(context.Background(), filter, "write", "{}", "")
	require.Error(t, err)
	assert.Equal(t, []string{"read"}, inner.Calls())
}

func TestToolFilter_ReadsProvidersEachListing(t *testing.T) {
	inner := mcptest.NewStaticSource("read", "write")
	current := []*mcp.ProviderConfig{provider("a", true)}
	filter := mcp.NewToolFilter(inner, func() []*mcp.ProviderConfig { return current }, nil)

	assert.Equal(t, []string{"read", "write"}, toolNames(t, filter))

	current = []*mcp.ProviderConfig{provider("a", true, "read")}
	assert.Equal(t, []string{"write"}, toolNames(t, filter))
}
