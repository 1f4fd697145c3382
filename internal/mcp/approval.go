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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/mcpgate/internal/log"
	"github.com/tombee/mcpgate/internal/tracing"
	"github.com/tombee/mcpgate/pkg/approval"
)

const (
	// DeniedMessage is returned in place of the tool result when a call is
	// denied, times out waiting for approval, or is interrupted.
	DeniedMessage = "Tool execution was denied by the user."

	// TimeoutNotice is sent to the notifier when an approval times out.
	TimeoutNotice = "MCP tool execution was cancelled due to timeout"

	// DefaultApprovalTimeout is used when settings report no timeout.
	DefaultApprovalTimeout = 30 * time.Second
)

// ApprovalSettings is the part of the gateway settings the gate reads on
// every call, so changes apply without rebuilding the gate.
type ApprovalSettings interface {
	ApprovalRequired() bool
	ApprovalTimeout() time.Duration
}

// Notifier delivers fire-and-forget user-visible messages.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, message string)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, message string) {
	f(ctx, message)
}

// ApprovalGateConfig configures an ApprovalGate.
type ApprovalGateConfig struct {
	// Approver asks the user. Required unless approval is never needed.
	Approver approval.Approver

	// Settings supplies the approval-required flag and timeout.
	Settings ApprovalSettings

	// Headless approves every call without asking.
	Headless bool

	// Notifier receives timeout notices. Optional.
	Notifier Notifier

	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger
}

// ApprovalGate wraps a ToolSource so every call must be approved before the
// original executor runs. Descriptors pass through unchanged.
type ApprovalGate struct {
	inner  ToolSource
	cfg    ApprovalGateConfig
	logger *slog.Logger
	tracer trace.Tracer
}

// NewApprovalGate wraps inner.
func NewApprovalGate(inner ToolSource, cfg ApprovalGateConfig) *ApprovalGate {
	return &ApprovalGate{
		inner:  inner,
		cfg:    cfg,
		logger: log.WithComponent(cfg.Logger, "approval"),
		tracer: otel.Tracer(tracerName),
	}
}

// ListTools returns the wrapped tools with gated executors.
func (g *ApprovalGate) ListTools(ctx context.Context) ([]Tool, error) {
	if g.inner == nil {
		return nil, nil
	}
	tools, err := g.inner.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	gated := make([]Tool, len(tools))
	for i, tool := range tools {
		gated[i] = Tool{Definition: tool.Definition, Executor: g.gate(tool)}
	}
	return gated, nil
}

func (g *ApprovalGate) gate(tool Tool) ToolExecutor {
	next := tool.Executor
	name := tool.Name()
	return func(ctx context.Context, arguments, sessionID string) (string, error) {
		if !g.Approve(ctx, name, arguments) {
			recordToolCall(name, "denied")
			return DeniedMessage, nil
		}
		return next(ctx, arguments, sessionID)
	}
}

// Approve decides whether a call may proceed. It returns immediately when
// running headless or when approval is not required; otherwise it asks
// the approver and waits up to the configured timeout. Timeouts, errors
// and cancellation all count as denial.
func (g *ApprovalGate) Approve(ctx context.Context, toolName, arguments string) bool {
	if g.cfg.Headless {
		recordApproval("auto")
		return true
	}
	if g.cfg.Settings != nil && !g.cfg.Settings.ApprovalRequired() {
		recordApproval("auto")
		return true
	}

	requestID := uuid.NewString()
	logger := g.logger.With(log.ToolKey, toolName, "request_id", requestID)

	ctx, span := g.tracer.Start(ctx, "mcp.tool.approval",
		trace.WithAttributes(
			attribute.String("mcp.tool", toolName),
			attribute.String("mcp.approval.request_id", requestID),
		))
	defer span.End()

	start := time.Now()
	decision, err := g.await(ctx, toolName, arguments)
	span.SetAttributes(attribute.String("mcp.approval.decision", decision))
	recordApproval(decision)
	tracing.RecordApprovalWait(ctx, decision, time.Since(start))

	switch decision {
	case "approved":
		logger.Info("tool call approved")
		return true
	case "timeout":
		logger.Warn("tool approval timed out", log.Error(err))
		if g.cfg.Notifier != nil {
			g.cfg.Notifier.Notify(ctx, TimeoutNotice)
		}
	case "error":
		logger.Warn("tool approval failed", log.Error(err))
	default:
		logger.Info("tool call denied", "reason", decision)
	}
	return false
}

type approvalResult struct {
	approved bool
	err      error
}

// await hands the request to the approver on its own goroutine and waits
// for whichever comes first: the answer, the timer, or cancellation. The
// result channel is buffered so a late answer never blocks.
func (g *ApprovalGate) await(ctx context.Context, toolName, arguments string) (string, error) {
	if g.cfg.Approver == nil {
		return "error", fmt.Errorf("no approver configured")
	}

	timeout := DefaultApprovalTimeout
	if g.cfg.Settings != nil && g.cfg.Settings.ApprovalTimeout() > 0 {
		timeout = g.cfg.Settings.ApprovalTimeout()
	}

	approvalCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan approvalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- approvalResult{err: fmt.Errorf("approver panicked: %v", r)}
			}
		}()
		ok, err := g.cfg.Approver.Approve(approvalCtx, toolName, arguments)
		result <- approvalResult{approved: ok, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-result:
		switch {
		case r.err != nil:
			return "error", r.err
		case r.approved:
			return "approved", nil
		}
		return "denied", nil
	case <-timer.C:
		return "timeout", fmt.Errorf("%w after %v", ErrApprovalTimeout, timeout)
	case <-ctx.Done():
		return "interrupted", ctx.Err()
	}
}
