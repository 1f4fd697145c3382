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

// Package approval asks a human whether an MCP tool call may run.
package approval

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Approver decides whether toolName may run with arguments (a JSON object).
// Implementations may block; callers bound the wait with ctx.
type Approver interface {
	Approve(ctx context.Context, toolName, arguments string) (bool, error)
}

// Func adapts a function to Approver.
type Func func(ctx context.Context, toolName, arguments string) (bool, error)

func (f Func) Approve(ctx context.Context, toolName, arguments string) (bool, error) {
	return f(ctx, toolName, arguments)
}

var (
	promptTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	promptLabel = lipgloss.NewStyle().Faint(true)
)

// Prompter asks on a terminal. Answering "always" approves the same tool
// for the rest of the process without asking again.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	mu     sync.Mutex
	always map[string]bool
}

// NewPrompter prompts on stderr and reads stdin.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stderr)
}

func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, always: make(map[string]bool)}
}

func (p *Prompter) Approve(_ context.Context, toolName, arguments string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.always[toolName] {
		return true, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n  %s %s\n", promptTitle.Render("MCP tool call needs approval"), promptLabel.Render("Tool:"), toolName)
	if args := indentJSON(arguments); args != "" {
		fmt.Fprintf(&b, "  %s\n", promptLabel.Render("Arguments:"))
		for _, line := range strings.Split(args, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	b.WriteString("\nAllow? [y/N/always]: ")
	io.WriteString(p.out, b.String()) //nolint:errcheck

	answer, err := p.in.ReadString('\n')
	if err != nil && answer == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("read approval answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	case "a", "always":
		p.always[toolName] = true
		return true, nil
	}
	return false, nil
}

func indentJSON(arguments string) string {
	arguments = strings.TrimSpace(arguments)
	if arguments == "" || arguments == "{}" {
		return ""
	}
	var buf bytes.Buffer
	if json.Indent(&buf, []byte(arguments), "", "  ") != nil {
		return arguments
	}
	return buf.String()
}
