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

package mcp_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/mcpgate/internal/mcp"
	mcptest "github.com/tombee/mcpgate/internal/mcp/testing"
	"github.com/tombee/mcpgate/pkg/approval"
)

type approvalSettings struct {
	required bool
	timeout  time.Duration
}

func (s approvalSettings) ApprovalRequired() bool         { return s.required }
func (s approvalSettings) ApprovalTimeout() time.Duration { return s.timeout }

type notices struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notices) Notify(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, message)
}

func (n *notices) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

func answer(ok bool, err error) approval.Func {
	return func(ctx context.Context, toolName, arguments string) (bool, error) {
		return ok, err
	}
}

func TestApprovalGate_Decisions(t *testing.T) {
	block := approval.Func(func(ctx context.Context, toolName, arguments string) (bool, error) {
		<-ctx.Done()
		return true, nil
	})

	tests := []struct {
		name       string
		cfg        mcp.ApprovalGateConfig
		want       string
		wantCalled bool
		wantNotice bool
	}{
		{
			name:       "approved",
			cfg:        mcp.ApprovalGateConfig{Approver: answer(true, nil), Settings: approvalSettings{required: true, timeout: time.Second}},
			want:       "deploy result",
			wantCalled: true,
		},
		{
			name: "denied",
			cfg:  mcp.ApprovalGateConfig{Approver: answer(false, nil), Settings: approvalSettings{required: true, timeout: time.Second}},
			want: mcp.DeniedMessage,
		},
		{
			name: "approver error denies",
			cfg:  mcp.ApprovalGateConfig{Approver: answer(true, errors.New("tty closed")), Settings: approvalSettings{required: true, timeout: time.Second}},
			want: mcp.DeniedMessage,
		},
		{
			name:       "timeout denies and notifies",
			cfg:        mcp.ApprovalGateConfig{Approver: block, Settings: approvalSettings{required: true, timeout: 50 * time.Millisecond}},
			want:       mcp.DeniedMessage,
			wantNotice: true,
		},
		{
			name: "missing approver denies",
			cfg:  mcp.ApprovalGateConfig{Settings: approvalSettings{required: true, timeout: time.Second}},
			want: mcp.DeniedMessage,
		},
		{
			name:       "not required skips approver",
			cfg:        mcp.ApprovalGateConfig{Approver: answer(false, nil), Settings: approvalSettings{required: false}},
			want:       "deploy result",
			wantCalled: true,
		},
		{
			name:       "headless skips approver",
			cfg:        mcp.ApprovalGateConfig{Approver: answer(false, nil), Settings: approvalSettings{required: true}, Headless: true},
			want:       "deploy result",
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := mcptest.NewStaticSource("deploy")
			n := &notices{}
			tt.cfg.Notifier = n

			gate := mcp.NewApprovalGate(inner, tt.cfg)
			got, err := mcp.Execute(context.Background(), gate, "deploy", `{"env":"prod"}`, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			if tt.wantCalled {
				assert.Equal(t, []string{"deploy"}, inner.Calls())
			} else {
				assert.Empty(t, inner.Calls())
			}

			if tt.wantNotice {
				assert.Equal(t, []string{mcp.TimeoutNotice}, n.all())
			} else {
				assert.Empty(t, n.all())
			}
		})
	}
}

func TestApprovalGate_PassesToolAndArguments(t *testing.T) {
	var gotTool, gotArgs string
	approver := approval.Func(func(ctx context.Context, toolName, arguments string) (bool, error) {
		gotTool, gotArgs = toolName, arguments
		return true, nil
	})

	gate := mcp.NewApprovalGate(mcptest.NewStaticSource("deploy"), mcp.ApprovalGateConfig{
		Approver: approver,
		Settings: approvalSettings{required: true, timeout: time.Second},
	})
	_, err := mcp.Execute(context.Background(), gate, "deploy", `{"env":"prod"}`, "s1")
	require.NoError(t, err)

	assert.Equal(t, "deploy", gotTool)
	assert.Equal(t, `{"env":"prod"}`, gotArgs)
}

func TestApprovalGate_CancelledContextDenies(t *testing.T) {
	started := make(chan struct{})
	approver := approval.Func(func(ctx context.Context, toolName, arguments string) (bool, error) {
		close(started)
		<-ctx.Done()
		return true, nil
	})

	inner := mcptest.NewStaticSource("deploy")
	gate := mcp.NewApprovalGate(inner, mcp.ApprovalGateConfig{
		Approver: approver,
		Settings: approvalSettings{required: true, timeout: time.Minute},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	got, err := mcp.Execute(ctx, gate, "deploy", "{}", "")
	require.NoError(t, err)
	assert.Equal(t, mcp.DeniedMessage, got)
	assert.Empty(t, inner.Calls())
}

func TestApprovalGate_LateAnswerIsIgnored(t *testing.T) {
	release := make(chan struct{})
	var answered atomic.Bool
	approver := approval.Func(func(ctx context.Context, toolName, arguments string) (bool, error) {
		<-release
		answered.Store(true)
		return true, nil
	})

	inner := mcptest.NewStaticSource("deploy")
	gate := mcp.NewApprovalGate(inner, mcp.ApprovalGateConfig{
		Approver: approver,
		Settings: approvalSettings{required: true, timeout: 20 * time.Millisecond},
	})

	got, err := mcp.Execute(context.Background(), gate, "deploy", "{}", "")
	require.NoError(t, err)
	assert.Equal(t, mcp.DeniedMessage, got)

	close(release)
	require.Eventually(t, answered.Load, time.Second, 5*time.Millisecond)
	assert.Empty(t, inner.Calls())
}

func TestApprovalGate_DescriptorsUnchanged(t *testing.T) {
	inner := mcptest.NewStaticSource("a", "b")
	gate := mcp.NewApprovalGate(inner, mcp.ApprovalGateConfig{Headless: true})

	assert.Equal(t, []string{"a", "b"}, toolNames(t, gate))
}

func TestApprovalGate_NotifierFunc(t *testing.T) {
	var got string
	notifier := mcp.NotifierFunc(func(ctx context.Context, message string) { got = message })

	gate := mcp.NewApprovalGate(mcptest.NewStaticSource("slow"), mcp.ApprovalGateConfig{
		Approver: approval.Func(func(ctx context.Context, toolName, arguments string) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		}),
		Settings: approvalSettings{required: true, timeout: 10 * time.Millisecond},
		Notifier: notifier,
	})

	assert.False(t, gate.Approve(context.Background(), "slow", "{}"))
	assert.Equal(t, mcp.TimeoutNotice, got)
}
