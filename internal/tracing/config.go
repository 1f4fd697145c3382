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

package tracing

import (
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/mcpgate/internal/config"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds observability configuration.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter selects where spans go.
	Exporter string

	// Endpoint is the OTLP receiver (host:port). Empty uses the exporter default.
	Endpoint string

	// Insecure disables TLS for OTLP exporters.
	Insecure bool

	// SampleRate is the fraction of root traces to sample (0.0 - 1.0).
	SampleRate float64

	// Writer receives stdout spans. Defaults to os.Stdout.
	Writer io.Writer

	// Registerer receives the metric collector. Defaults to the default
	// Prometheus registry.
	Registerer prometheus.Registerer
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "mcpgate",
		ServiceVersion: "unknown",
		Exporter:       ExporterNone,
		SampleRate:     1.0,
	}
}

// FromTelemetry converts the telemetry section of the mcpgate config.
// Endpoints given as http:// URLs are stripped to host:port and marked
// insecure.
func FromTelemetry(tc config.TelemetryConfig, version string) Config {
	cfg := DefaultConfig()
	if version != "" {
		cfg.ServiceVersion = version
	}
	if tc.TraceExporter != "" {
		cfg.Exporter = strings.ToLower(tc.TraceExporter)
	}

	endpoint := tc.Endpoint
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		cfg.Insecure = true
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}
	cfg.Endpoint = strings.TrimRight(endpoint, "/")
	return cfg
}
