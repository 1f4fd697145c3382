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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// processStarts tracks provider processes launched by the supervisor
	processStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_process_starts_total",
			Help: "Total provider process starts by server and result",
		},
		[]string{"server", "result"},
	)

	// processExits tracks provider processes that exited for any reason
	processExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_process_exits_total",
			Help: "Total provider process exits by server",
		},
		[]string{"server"},
	)

	// processRunning tracks the number of supervised processes alive
	processRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcpgate_processes_running",
			Help: "Number of provider processes currently running",
		},
	)

	// toolCalls tracks tool executions by outcome
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_tool_calls_total",
			Help: "Total tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	// approvalDecisions tracks approval gate outcomes
	approvalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_approval_decisions_total",
			Help: "Total approval decisions by decision (approved, denied, timeout, auto)",
		},
		[]string{"decision"},
	)

	// clientFailures tracks providers skipped because their client could not be created
	clientFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_client_failures_total",
			Help: "Total provider clients that failed to start by server",
		},
		[]string{"server"},
	)

	// filteredTools tracks tools removed from the exposed surface
	filteredTools = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mcpgate_filtered_tools_total",
			Help: "Total tools dropped by the disabled-tools filter",
		},
	)

	// trafficLines tracks classified traffic lines by tag
	trafficLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_traffic_lines_total",
			Help: "Total classified traffic lines by tag",
		},
		[]string{"tag"},
	)
)

// recordProcessStart increments the process start counter
func recordProcessStart(server string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	} else {
		processRunning.Inc()
	}
	processStarts.WithLabelValues(server, result).Inc()
}

// recordProcessExit increments the exit counter
func recordProcessExit(server string) {
	processRunning.Dec()
	processExits.WithLabelValues(server).Inc()
}

// recordToolCall increments the tool call counter
func recordToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

// recordApproval increments the approval decision counter
func recordApproval(decision string) {
	approvalDecisions.WithLabelValues(decision).Inc()
}

func recordClientFailure(server string) {
	clientFailures.WithLabelValues(server).Inc()
}

func recordFiltered(n int) {
	filteredTools.Add(float64(n))
}

func recordTraffic(tag string) {
	trafficLines.WithLabelValues(tag).Inc()
}
