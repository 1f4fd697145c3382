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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/mcpgate/internal/mcp"
)

func remoteEntry(headers ...Header) ServerInfo {
	return ServerInfo{
		Name:    "test-server",
		Remotes: []Remote{{Type: "streamable-http", URL: "https://mcp.example.com/v1", Headers: headers}},
	}
}

func packageEntry(registryType, identifier string, vars ...EnvVar) ServerInfo {
	return ServerInfo{
		Name: "filesystem-server",
		Packages: []Package{{
			RegistryType:         registryType,
			Identifier:           identifier,
			EnvironmentVariables: vars,
		}},
	}
}

func TestConvert_Remote(t *testing.T) {
	tests := []struct {
		name        string
		info        ServerInfo
		values      map[string]string
		wantHeaders map[string]string
	}{
		{
			name:        "no headers",
			info:        remoteEntry(),
			wantHeaders: nil,
		},
		{
			name: "user values",
			info: remoteEntry(
				Header{Name: "Authorization", IsRequired: true, IsSecret: true},
				Header{Name: "X-Custom"},
			),
			values: map[string]string{
				"Authorization": "Bearer my-secret-key",
				"X-Custom":      "custom-value",
			},
			wantHeaders: map[string]string{
				"Authorization": "Bearer my-secret-key",
				"X-Custom":      "custom-value",
			},
		},
		{
			name: "blank values are skipped",
			info: remoteEntry(
				Header{Name: "Authorization"},
				Header{Name: "X-Optional"},
			),
			values: map[string]string{
				"Authorization": "Bearer my-key",
				"X-Optional":    "   ",
			},
			wantHeaders: map[string]string{"Authorization": "Bearer my-key"},
		},
		{
			name:        "declared value is the fallback",
			info:        remoteEntry(Header{Name: "X-Api-Version", Value: "2024-01-01"}),
			wantHeaders: map[string]string{"X-Api-Version": "2024-01-01"},
		},
		{
			name:        "default is the fallback for a blank user value",
			info:        remoteEntry(Header{Name: "X-Region", Default: "eu"}),
			values:      map[string]string{"X-Region": ""},
			wantHeaders: map[string]string{"X-Region": "eu"},
		},
		{
			name:        "required header without value or default is omitted",
			info:        remoteEntry(Header{Name: "Authorization", IsRequired: true}),
			wantHeaders: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Convert(tt.info, tt.values)

			assert.Equal(t, "test-server", cfg.Name)
			assert.Equal(t, mcp.TransportHTTP, cfg.Transport())
			assert.Equal(t, "https://mcp.example.com/v1", cfg.URL)
			assert.True(t, cfg.Enabled)
			assert.Equal(t, tt.wantHeaders, cfg.Headers)
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestConvert_RemoteBearerToken(t *testing.T) {
	info := ServerInfo{
		Name:    "x",
		Remotes: []Remote{{URL: "https://x/mcp", Headers: []Header{{Name: "Authorization", IsRequired: true}}}},
	}

	cfg := Convert(info, map[string]string{"Authorization": "Bearer t"})

	assert.Equal(t, mcp.TransportHTTP, cfg.Transport())
	assert.Equal(t, map[string]string{"Authorization": "Bearer t"}, cfg.Headers)
}

func TestConvert_SSERemote(t *testing.T) {
	info := ServerInfo{Name: "events", Remotes: []Remote{{Type: "sse", URL: "https://x/sse"}}}

	cfg := Convert(info, nil)
	assert.Equal(t, mcp.TransportHTTPSSE, cfg.Transport())
}

func TestConvert_FirstRemoteWinsOverPackages(t *testing.T) {
	info := ServerInfo{
		Name:     "both",
		Remotes:  []Remote{{URL: "https://first/mcp"}, {URL: "https://second/mcp"}},
		Packages: []Package{{RegistryType: "npm", Identifier: "pkg"}},
	}

	cfg := Convert(info, nil)
	assert.Equal(t, mcp.TransportHTTP, cfg.Transport())
	assert.Equal(t, "https://first/mcp", cfg.URL)
	assert.Empty(t, cfg.Command)
}

func TestConvert_Package(t *testing.T) {
	tests := []struct {
		name        string
		info        ServerInfo
		wantCommand string
		wantArgs    []string
	}{
		{
			name:        "npm",
			info:        packageEntry("npm", "@modelcontextprotocol/server-filesystem"),
			wantCommand: "npx",
			wantArgs:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
		},
		{
			name:        "npm is case-insensitive",
			info:        packageEntry("NPM", "pkg"),
			wantCommand: "npx",
			wantArgs:    []string{"-y", "pkg"},
		},
		{
			name:        "oci",
			info:        packageEntry("oci", "ghcr.io/example/mcp-server:latest"),
			wantCommand: "docker",
			wantArgs:    []string{"run", "-i", "--rm", "ghcr.io/example/mcp-server:latest"},
		},
		{
			name:        "unknown registry type",
			info:        packageEntry("cargo", "my-mcp-tool"),
			wantCommand: "my-mcp-tool",
			wantArgs:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Convert(tt.info, nil)

			assert.Equal(t, "filesystem-server", cfg.Name)
			assert.Equal(t, mcp.TransportStdio, cfg.Transport())
			assert.Equal(t, tt.wantCommand, cfg.Command)
			if tt.wantArgs == nil {
				assert.Empty(t, cfg.Args)
			} else {
				assert.Equal(t, tt.wantArgs, cfg.Args)
			}
		})
	}
}

func TestConvert_PackageEnv(t *testing.T) {
	info := packageEntry("npm", "pkg",
		EnvVar{Name: "API_KEY", IsRequired: true, IsSecret: true},
		EnvVar{Name: "REGION", Default: "eu"},
		EnvVar{Name: "DEBUG"},
	)

	cfg := Convert(info, map[string]string{
		"API_KEY": "secret-123",
		"DEBUG":   " ",
		"UNUSED":  "ignored",
	})

	assert.Equal(t, map[string]string{"API_KEY": "secret-123"}, cfg.Env)
}

func TestConvert_Fallback(t *testing.T) {
	cfg := Convert(ServerInfo{Name: "minimal-server"}, nil)

	assert.Equal(t, "minimal-server", cfg.Name)
	assert.Equal(t, mcp.TransportHTTP, cfg.Transport())
	assert.Empty(t, cfg.URL)
	assert.Empty(t, cfg.Headers)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		info ServerInfo
		want string
	}{
		{name: "remote", info: remoteEntry(), want: TypeRemote},
		{name: "npm", info: packageEntry("npm", "pkg"), want: TypeNPM},
		{name: "oci", info: packageEntry("oci", "img"), want: TypeDocker},
		{name: "raw type", info: packageEntry("cargo", "tool"), want: "cargo"},
		{name: "nothing", info: ServerInfo{Name: "x"}, want: TypeUnknown},
		{
			name: "remote beats package",
			info: ServerInfo{Remotes: []Remote{{URL: "https://x"}}, Packages: []Package{{RegistryType: "npm"}}},
			want: TypeRemote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.info))
		})
	}
}

func TestInputs(t *testing.T) {
	remote := Inputs(remoteEntry(
		Header{Name: "Authorization", Description: "API token", IsRequired: true, IsSecret: true},
		Header{Name: "X-Version", Value: "2"},
	))
	require.Len(t, remote, 2)
	assert.Equal(t, Input{Name: "Authorization", Description: "API token", Required: true, Secret: true, Header: true}, remote[0])
	assert.Equal(t, "2", remote[1].Default)

	env := Inputs(packageEntry("npm", "pkg", EnvVar{Name: "API_KEY", IsSecret: true}))
	require.Len(t, env, 1)
	assert.False(t, env[0].Header)
	assert.True(t, env[0].Secret)

	assert.Nil(t, Inputs(ServerInfo{Name: "x"}))
}
