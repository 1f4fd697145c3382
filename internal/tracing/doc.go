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

/*
Package tracing configures OpenTelemetry for mcpgate.

New installs a global tracer provider and a global meter provider backed by
the OpenTelemetry Prometheus exporter. Instrumented code never imports the
SDK: it asks otel.Tracer for spans and uses the helpers in this package to
record tool call and approval latencies.

	provider, err := tracing.New(ctx, tracing.FromTelemetry(cfg.Telemetry, version))
	if err != nil {
	    return err
	}
	defer provider.Shutdown(context.Background())

# Exporters

Spans go to one of:

  - none: spans are sampled but dropped
  - stdout: pretty-printed JSON on the configured writer
  - otlp-http: an OTLP/HTTP collector
  - otlp-grpc: an OTLP/gRPC collector

# Metrics

Histograms are exposed on the default Prometheus registry next to the
promauto counters of the mcp package, so one promhttp handler serves both.
*/
package tracing
