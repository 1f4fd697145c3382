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
	"strings"

	"github.com/tombee/mcpgate/internal/mcp"
)

// Display types returned by Classify.
const (
	TypeRemote  = "Remote"
	TypeNPM     = "npm"
	TypeDocker  = "Docker"
	TypeUnknown = "Unknown"
)

// Convert turns a catalog entry into a provider config.
//
// The first remote wins over packages. A header takes the user's value when
// present and non-blank, else its declared default, and is left out when
// both are blank. For packages, only environment variables the user gave a
// non-blank value are kept. An entry with neither becomes an HTTP stub
// carrying just the name.
func Convert(info ServerInfo, values map[string]string) *mcp.ProviderConfig {
	switch {
	case len(info.Remotes) > 0:
		return convertRemote(info, values)
	case len(info.Packages) > 0:
		return convertPackage(info, values)
	}
	return mcp.NewProviderConfig(info.Name, mcp.TransportHTTP)
}

func convertRemote(info ServerInfo, values map[string]string) *mcp.ProviderConfig {
	remote := info.Remotes[0]

	transport := mcp.TransportHTTP
	if strings.EqualFold(remote.Type, "sse") {
		transport = mcp.TransportHTTPSSE
	}

	cfg := mcp.NewProviderConfig(info.Name, transport)
	cfg.URL = remote.URL

	headers := make(map[string]string)
	for _, h := range remote.Headers {
		value := values[h.Name]
		if strings.TrimSpace(value) == "" {
			value = h.DefaultValue()
		}
		if strings.TrimSpace(value) != "" {
			headers[h.Name] = value
		}
	}
	if len(headers) > 0 {
		cfg.Headers = headers
	}
	return cfg
}

func convertPackage(info ServerInfo, values map[string]string) *mcp.ProviderConfig {
	pkg := info.Packages[0]

	var cfg *mcp.ProviderConfig
	switch strings.ToLower(pkg.RegistryType) {
	case "npm":
		cfg = mcp.NewStdioConfig(info.Name, "npx", "-y", pkg.Identifier)
	case "oci":
		cfg = mcp.NewStdioConfig(info.Name, "docker", "run", "-i", "--rm", pkg.Identifier)
	default:
		cfg = mcp.NewStdioConfig(info.Name, pkg.Identifier)
	}

	env := make(map[string]string)
	for _, v := range pkg.EnvironmentVariables {
		if value := values[v.Name]; strings.TrimSpace(value) != "" {
			env[v.Name] = value
		}
	}
	if len(env) > 0 {
		cfg.Env = env
	}
	return cfg
}

// Classify returns the display type of an entry. Remotes take priority
// over packages.
func Classify(info ServerInfo) string {
	if len(info.Remotes) > 0 {
		return TypeRemote
	}
	if len(info.Packages) > 0 {
		registryType := info.Packages[0].RegistryType
		switch strings.ToLower(registryType) {
		case "npm":
			return TypeNPM
		case "oci":
			return TypeDocker
		}
		return registryType
	}
	return TypeUnknown
}

// Input is a value the user may supply when adding an entry.
type Input struct {
	Name        string
	Description string
	Required    bool
	Secret      bool
	Default     string
	// Header is true for remote headers and false for environment variables.
	Header bool
}

// Inputs lists the values Convert will look up for info, in declaration
// order.
func Inputs(info ServerInfo) []Input {
	switch {
	case len(info.Remotes) > 0:
		headers := info.Remotes[0].Headers
		inputs := make([]Input, len(headers))
		for i, h := range headers {
			inputs[i] = Input{
				Name:        h.Name,
				Description: h.Description,
				Required:    h.IsRequired,
				Secret:      h.IsSecret,
				Default:     h.DefaultValue(),
				Header:      true,
			}
		}
		return inputs
	case len(info.Packages) > 0:
		vars := info.Packages[0].EnvironmentVariables
		inputs := make([]Input, len(vars))
		for i, v := range vars {
			inputs[i] = Input{
				Name:        v.Name,
				Description: v.Description,
				Required:    v.IsRequired,
				Secret:      v.IsSecret,
				Default:     v.Default,
			}
		}
		return inputs
	}
	return nil
}
