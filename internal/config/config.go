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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Default values for gateway settings.
const (
	DefaultApprovalTimeoutSeconds = 30
	DefaultToolTimeoutSeconds     = 60
	DefaultRegistryBaseURL        = "https://registry.modelcontextprotocol.io/v0.1/servers"
	DefaultRegistryPageSize       = 100
	DefaultInstallCommandTimeout  = 30 * time.Minute
)

// Config represents the mcpgate settings file (settings.yaml).
type Config struct {
	Version int `yaml:"version,omitempty"`

	// MCPEnabled turns the whole gateway on or off. When false no provider
	// is started and no tools are exposed.
	MCPEnabled bool `yaml:"mcp_enabled"`

	// ProvidersFile overrides the location of mcp.json.
	ProvidersFile string `yaml:"providers_file,omitempty"`

	// ToolTimeoutSeconds bounds a single tool call.
	ToolTimeoutSeconds int `yaml:"tool_timeout_seconds,omitempty"`

	// DebugLogs forwards classified protocol traffic to the debug log.
	DebugLogs bool `yaml:"debug_logs,omitempty"`

	Approval  ApprovalConfig  `yaml:"approval"`
	Log       LogConfig       `yaml:"log"`
	Registry  RegistryConfig  `yaml:"registry"`
	Install   InstallConfig   `yaml:"install"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ApprovalConfig controls the tool approval gate.
type ApprovalConfig struct {
	// Required asks the user before every tool call.
	Required bool `yaml:"required"`

	// TimeoutSeconds is how long to wait for a decision before denying.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// RegistryConfig configures the provider catalog client.
type RegistryConfig struct {
	BaseURL  string `yaml:"base_url,omitempty"`
	PageSize int    `yaml:"page_size,omitempty"`

	// RequestsPerSecond limits page fetches during a full listing. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// InstallConfig configures locally built providers.
type InstallConfig struct {
	// BaseDir holds one checkout per installed repository.
	BaseDir string `yaml:"base_dir,omitempty"`

	// CommandTimeout bounds each git/build command.
	CommandTimeout time.Duration `yaml:"command_timeout,omitempty"`
}

// TelemetryConfig configures traces and metrics.
type TelemetryConfig struct {
	// TraceExporter is one of "none", "stdout", "otlp-http", "otlp-grpc".
	TraceExporter string `yaml:"trace_exporter,omitempty"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `yaml:"endpoint,omitempty"`

	// MetricsAddr serves Prometheus metrics when set (e.g. "127.0.0.1:9464").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version:            1,
		MCPEnabled:         true,
		ToolTimeoutSeconds: DefaultToolTimeoutSeconds,
		Approval: ApprovalConfig{
			Required:       true,
			TimeoutSeconds: DefaultApprovalTimeoutSeconds,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Registry: RegistryConfig{
			BaseURL:           DefaultRegistryBaseURL,
			PageSize:          DefaultRegistryPageSize,
			RequestsPerSecond: 5,
		},
		Install: InstallConfig{
			CommandTimeout: DefaultInstallCommandTimeout,
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
		},
	}
}

// applyDefaults fills zero values left after unmarshalling.
func (c *Config) applyDefaults() {
	d := Default()
	if c.ToolTimeoutSeconds == 0 {
		c.ToolTimeoutSeconds = d.ToolTimeoutSeconds
	}
	if c.Approval.TimeoutSeconds == 0 {
		c.Approval.TimeoutSeconds = d.Approval.TimeoutSeconds
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Registry.BaseURL == "" {
		c.Registry.BaseURL = d.Registry.BaseURL
	}
	if c.Registry.PageSize == 0 {
		c.Registry.PageSize = d.Registry.PageSize
	}
	if c.Install.CommandTimeout == 0 {
		c.Install.CommandTimeout = d.Install.CommandTimeout
	}
	if c.Telemetry.TraceExporter == "" {
		c.Telemetry.TraceExporter = d.Telemetry.TraceExporter
	}
}

// loadFromEnv applies MCPGATE_* overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("MCPGATE_MCP_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.MCPEnabled = enabled
		}
	}
	if val := os.Getenv("MCPGATE_APPROVAL_REQUIRED"); val != "" {
		if required, err := strconv.ParseBool(val); err == nil {
			c.Approval.Required = required
		}
	}
	if val := os.Getenv("MCPGATE_APPROVAL_TIMEOUT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			c.Approval.TimeoutSeconds = seconds
		}
	}
	if val := os.Getenv("MCPGATE_REGISTRY_URL"); val != "" {
		c.Registry.BaseURL = val
	}
	if val := os.Getenv("MCPGATE_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("MCPGATE_TRACE_EXPORTER"); val != "" {
		c.Telemetry.TraceExporter = strings.ToLower(val)
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var problems []string

	if c.Approval.TimeoutSeconds < 0 {
		problems = append(problems, "approval.timeout_seconds must be non-negative")
	}
	if c.ToolTimeoutSeconds < 0 {
		problems = append(problems, "tool_timeout_seconds must be non-negative")
	}
	if c.Registry.PageSize < 0 || c.Registry.PageSize > 1000 {
		problems = append(problems, "registry.page_size must be between 1 and 1000")
	}
	if c.Registry.RequestsPerSecond < 0 {
		problems = append(problems, "registry.requests_per_second must be non-negative")
	}
	switch c.Telemetry.TraceExporter {
	case "", "none", "stdout", "otlp-http", "otlp-grpc":
	default:
		problems = append(problems, fmt.Sprintf("telemetry.trace_exporter %q is not supported", c.Telemetry.TraceExporter))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ApprovalTimeout returns the approval wait as a duration.
func (c *Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.Approval.TimeoutSeconds) * time.Second
}

// ToolTimeout returns the tool call timeout as a duration.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}
