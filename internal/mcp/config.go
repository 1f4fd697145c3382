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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/mcpgate/internal/config"
	mcplog "github.com/tombee/mcpgate/internal/log"
	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

// RootKey is the top-level object holding server definitions. "servers" is
// accepted on input as an alias.
const RootKey = "mcpServers"

const aliasRootKey = "servers"

// ProviderConfig describes one MCP server (provider).
//
// The transport is fixed at construction. A zero ProviderConfig behaves as a
// disabled stdio provider; use NewStdioConfig or NewHTTPConfig instead.
type ProviderConfig struct {
	// Name is the unique key within a configuration set.
	Name string

	transport TransportType

	// Command is the executable for stdio providers.
	Command string

	// Args are command-line arguments, in order.
	Args []string

	// WorkingDirectory is where a stdio provider is launched. When set and
	// valid, process output is written to console.log inside it.
	WorkingDirectory string

	// URL is the endpoint of a remote provider.
	URL string

	// Headers are sent with every request to a remote provider.
	Headers map[string]string

	// Env holds extra environment variables, overriding inherited ones.
	Env map[string]string

	// Enabled controls whether the provider contributes tools.
	Enabled bool

	// DisabledTools lists tool names hidden from the exposed tool surface.
	// Kept sorted and free of duplicates.
	DisabledTools []string

	// Provenance of locally built providers.
	RepositoryURL  string
	RepositoryName string
	InstallPath    string
}

// NewProviderConfig creates an enabled provider with the given transport.
func NewProviderConfig(name string, transport TransportType) *ProviderConfig {
	if transport == "" {
		transport = TransportStdio
	}
	return &ProviderConfig{
		Name:      name,
		transport: transport,
		Enabled:   true,
	}
}

// NewStdioConfig creates an enabled stdio provider.
func NewStdioConfig(name, command string, args ...string) *ProviderConfig {
	cfg := NewProviderConfig(name, TransportStdio)
	cfg.Command = command
	cfg.Args = args
	return cfg
}

// NewHTTPConfig creates an enabled streamable HTTP provider.
func NewHTTPConfig(name, url string) *ProviderConfig {
	cfg := NewProviderConfig(name, TransportHTTP)
	cfg.URL = url
	return cfg
}

// Transport returns the provider's transport type.
func (c *ProviderConfig) Transport() TransportType {
	if c.transport == "" {
		return TransportStdio
	}
	return c.transport
}

// Validate checks the transport-specific required fields.
func (c *ProviderConfig) Validate() error {
	if c.Transport().IsRemote() {
		if strings.TrimSpace(c.URL) == "" {
			return &pkgerrors.ConfigError{
				Server: c.Name,
				Field:  "url",
				Reason: fmt.Sprintf("server with %s transport requires 'url' field", c.Transport()),
			}
		}
		return nil
	}
	if strings.TrimSpace(c.Command) == "" {
		return &pkgerrors.ConfigError{
			Server: c.Name,
			Field:  "command",
			Reason: "server requires 'command' field",
		}
	}
	return nil
}

// SetDisabledTools replaces the disabled tool set.
func (c *ProviderConfig) SetDisabledTools(names []string) {
	c.DisabledTools = normalizeToolSet(names)
}

// IsToolDisabled reports whether name is in the disabled tool set.
func (c *ProviderConfig) IsToolDisabled(name string) bool {
	i := sort.SearchStrings(c.DisabledTools, name)
	return i < len(c.DisabledTools) && c.DisabledTools[i] == name
}

// Clone returns a deep copy.
func (c *ProviderConfig) Clone() *ProviderConfig {
	out := *c
	out.Args = append([]string(nil), c.Args...)
	out.DisabledTools = append([]string(nil), c.DisabledTools...)
	out.Headers = cloneMap(c.Headers)
	out.Env = cloneMap(c.Env)
	return &out
}

// ConfigStore parses, validates and exports provider definitions, and
// loads/saves them from a JSON file.
type ConfigStore struct {
	path   string
	logger *slog.Logger
}

// ConfigStoreConfig configures a ConfigStore.
type ConfigStoreConfig struct {
	// Path is the mcp.json location. Defaults to the XDG config directory.
	Path string

	// Logger receives parse warnings.
	Logger *slog.Logger
}

// NewConfigStore creates a ConfigStore.
func NewConfigStore(cfg ConfigStoreConfig) *ConfigStore {
	return &ConfigStore{
		path:   cfg.Path,
		logger: mcplog.WithComponent(cfg.Logger, "mcp-config"),
	}
}

// Path returns the configured file path, resolving the default location.
func (s *ConfigStore) Path() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	return config.ProvidersPath()
}

// Parse decodes a provider configuration document.
//
// Unknown transport values fall back to stdio with a warning. A missing
// required field (command for stdio, url for remote transports) is a
// ConfigError naming the server and field.
func (s *ConfigStore) Parse(data []byte) (map[string]*ProviderConfig, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &pkgerrors.ConfigError{Reason: "invalid JSON", Cause: err}
	}

	key := RootKey
	rawServers, ok := root[key]
	if !ok || isNull(rawServers) {
		key = aliasRootKey
		rawServers, ok = root[key]
	}
	if !ok || isNull(rawServers) {
		return nil, &pkgerrors.ConfigError{
			Field:  RootKey,
			Reason: "invalid MCP configuration: missing 'mcpServers' object",
		}
	}

	var servers map[string]json.RawMessage
	if err := json.Unmarshal(rawServers, &servers); err != nil {
		return nil, &pkgerrors.ConfigError{Field: key, Reason: "must be an object", Cause: err}
	}

	configs := make(map[string]*ProviderConfig, len(servers))
	for _, name := range sortedKeys(servers) {
		cfg, err := s.parseServer(name, servers[name])
		if err != nil {
			return nil, err
		}
		configs[name] = cfg
	}

	return configs, nil
}

func (s *ConfigStore) parseServer(name string, raw json.RawMessage) (*ProviderConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, &pkgerrors.ConfigError{Server: name, Reason: "server definition must be an object", Cause: err}
	}

	transport := TransportStdio
	if rawTransport, ok := fields["transport"]; ok {
		value := stringValue(rawTransport)
		parsed, known := ParseTransport(value)
		if !known {
			s.logger.Warn("unknown transport type, defaulting to stdio",
				mcplog.ServerKey, name,
				mcplog.TransportKey, value)
		}
		transport = parsed
	}

	cfg := NewProviderConfig(name, transport)
	cfg.Command = stringValue(fields["command"])
	cfg.URL = stringValue(fields["url"])
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Args = stringList(fields["args"])
	cfg.Env = stringMap(fields["env"])
	cfg.Headers = stringMap(fields["headers"])
	cfg.Enabled = boolValue(fields["enabled"], true)
	cfg.SetDisabledTools(stringList(fields["disabledTools"]))
	cfg.WorkingDirectory = stringValue(fields["workingDirectory"])
	cfg.RepositoryURL = stringValue(fields["repositoryUrl"])
	cfg.RepositoryName = stringValue(fields["repositoryName"])
	cfg.InstallPath = stringValue(fields["installPath"])

	return cfg, nil
}

// exportServer is the serialized form of one provider. Field order follows
// the conventional mcp.json layout.
type exportServer struct {
	Transport        TransportType     `json:"transport,omitempty"`
	Command          string            `json:"command,omitempty"`
	Args             []string          `json:"args,omitempty"`
	URL              string            `json:"url,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	Enabled          *bool             `json:"enabled,omitempty"`
	DisabledTools    []string          `json:"disabledTools,omitempty"`
	WorkingDirectory string            `json:"workingDirectory,omitempty"`
	RepositoryURL    string            `json:"repositoryUrl,omitempty"`
	RepositoryName   string            `json:"repositoryName,omitempty"`
	InstallPath      string            `json:"installPath,omitempty"`
}

// Export serializes configs as a pretty-printed mcp.json document.
//
// The default stdio transport and enabled=true are never written. Without
// includeExtensions the output only carries fields other MCP clients
// understand: disabledTools, the working directory and provenance are left out.
func (s *ConfigStore) Export(configs map[string]*ProviderConfig, includeExtensions bool) ([]byte, error) {
	servers := make(map[string]exportServer, len(configs))
	for name, cfg := range configs {
		if cfg == nil {
			continue
		}
		out := exportServer{Env: nonEmptyMap(cfg.Env)}
		if !cfg.Enabled {
			disabled := false
			out.Enabled = &disabled
		}

		if cfg.Transport().IsRemote() {
			out.Transport = cfg.Transport()
			out.URL = cfg.URL
			out.Headers = nonEmptyMap(cfg.Headers)
		} else {
			out.Command = cfg.Command
			if len(cfg.Args) > 0 {
				out.Args = cfg.Args
			}
		}

		if includeExtensions {
			if len(cfg.DisabledTools) > 0 {
				out.DisabledTools = cfg.DisabledTools
			}
			out.WorkingDirectory = cfg.WorkingDirectory
			out.RepositoryURL = cfg.RepositoryURL
			out.RepositoryName = cfg.RepositoryName
			out.InstallPath = cfg.InstallPath
		}

		servers[name] = out
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{RootKey: servers}); err != nil {
		return nil, fmt.Errorf("failed to encode MCP configuration: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads and parses the configuration file. A missing file yields an
// empty set.
func (s *ConfigStore) Load() (map[string]*ProviderConfig, error) {
	path, err := s.Path()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*ProviderConfig), nil
		}
		return nil, &pkgerrors.ConfigError{Reason: "failed to read " + path, Cause: err}
	}

	return s.Parse(data)
}

// Save exports configs (with extensions) and writes them atomically.
func (s *ConfigStore) Save(configs map[string]*ProviderConfig) error {
	path, err := s.Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	data, err := s.Export(configs, true)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write to temp file first, then rename (atomic operation)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// SortedNames returns the provider names in lexical order.
func SortedNames(configs map[string]*ProviderConfig) []string {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sensitiveKeyPatterns are patterns that indicate a sensitive value.
var sensitiveKeyPatterns = []string{
	"SECRET", "TOKEN", "KEY", "PASSWORD", "CREDENTIAL", "AUTH",
}

// IsSensitiveKey returns true if an env var or header name appears to hold a credential.
func IsSensitiveKey(key string) bool {
	upperKey := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upperKey, pattern) {
			return true
		}
	}
	return false
}

// RedactValues returns a copy of values with sensitive entries masked.
func RedactValues(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if IsSensitiveKey(k) {
			out[k] = "***REDACTED***"
		} else {
			out[k] = v
		}
	}
	return out
}

// Lenient decoders. Scalars are stringified, nulls and structured values
// where a scalar is expected are ignored.

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func decodeAny(raw json.RawMessage) any {
	if isNull(raw) {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func stringValue(raw json.RawMessage) string {
	s, _ := scalarString(decodeAny(raw))
	return s
}

func stringList(raw json.RawMessage) []string {
	switch v := decodeAny(raw).(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func stringMap(raw json.RawMessage) map[string]string {
	obj, ok := decodeAny(raw).(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, item := range obj {
		if s, ok := scalarString(item); ok {
			out[k] = s
		}
	}
	return out
}

func boolValue(raw json.RawMessage, def bool) bool {
	switch v := decodeAny(raw).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func normalizeToolSet(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func nonEmptyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
