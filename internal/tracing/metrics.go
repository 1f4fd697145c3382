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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tombee/mcpgate"

var (
	instrumentsOnce sync.Once
	toolDuration    metric.Float64Histogram
	approvalWait    metric.Float64Histogram
)

// instruments are created against the global meter provider, which
// forwards to the SDK provider once New installs it.
func initInstruments() {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(meterName)

		var err error
		toolDuration, err = meter.Float64Histogram(
			"mcpgate_tool_call_duration_seconds",
			metric.WithDescription("MCP tool call latency in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}

		approvalWait, err = meter.Float64Histogram(
			"mcpgate_approval_wait_seconds",
			metric.WithDescription("Time spent waiting for a tool approval decision"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// RecordToolCall records the latency of one tool call.
func RecordToolCall(ctx context.Context, server, tool, outcome string, d time.Duration) {
	initInstruments()
	if toolDuration == nil {
		return
	}
	toolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("server", server),
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	))
}

// RecordApprovalWait records how long an approval decision took.
func RecordApprovalWait(ctx context.Context, decision string, d time.Duration) {
	initInstruments()
	if approvalWait == nil {
		return
	}
	approvalWait.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("decision", decision),
	))
}
