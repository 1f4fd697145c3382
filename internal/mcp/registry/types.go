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

import "strings"

// Response is one page of catalog results.
type Response struct {
	Servers  []ServerEntry `json:"servers"`
	Metadata Metadata      `json:"metadata"`
}

// Metadata carries pagination state.
type Metadata struct {
	NextCursor string `json:"nextCursor,omitempty"`
	Count      int    `json:"count,omitempty"`
}

// ServerEntry wraps a catalog record with registry-managed metadata.
type ServerEntry struct {
	Server ServerInfo     `json:"server"`
	Meta   map[string]any `json:"_meta,omitempty"`
}

// ServerInfo describes one provider in the catalog.
type ServerInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version,omitempty"`
	Repository  *Repository `json:"repository,omitempty"`
	Remotes     []Remote    `json:"remotes,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository points at the provider's source.
type Repository struct {
	URL    string `json:"url,omitempty"`
	Source string `json:"source,omitempty"`
}

// Remote is a hosted endpoint for a provider.
type Remote struct {
	// Type is the transport, e.g. "streamable-http" or "sse".
	Type    string   `json:"type"`
	URL     string   `json:"url"`
	Headers []Header `json:"headers,omitempty"`
}

// Header is a request header a remote expects.
type Header struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsRequired  bool   `json:"isRequired,omitempty"`
	IsSecret    bool   `json:"isSecret,omitempty"`
	Value       string `json:"value,omitempty"`
	Default     string `json:"default,omitempty"`
}

// DefaultValue returns the declared value, falling back to the default.
func (h Header) DefaultValue() string {
	if strings.TrimSpace(h.Value) != "" {
		return h.Value
	}
	return h.Default
}

// Package is an installable distribution of a provider.
type Package struct {
	// RegistryType is the package ecosystem, e.g. "npm", "oci" or "pypi".
	RegistryType         string   `json:"registryType"`
	Identifier           string   `json:"identifier"`
	Version              string   `json:"version,omitempty"`
	EnvironmentVariables []EnvVar `json:"environmentVariables,omitempty"`
}

// EnvVar is an environment variable a package reads.
type EnvVar struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsRequired  bool   `json:"isRequired,omitempty"`
	IsSecret    bool   `json:"isSecret,omitempty"`
	Default     string `json:"default,omitempty"`
}
