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

package shared

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// Muted is used for labels and secondary detail.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Header is used for section titles in status output.
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

func RenderOK(msg string) string    { return okStyle.Render("✓") + " " + msg }
func RenderWarn(msg string) string  { return warnStyle.Render("⚠") + " " + msg }
func RenderError(msg string) string { return errorStyle.Render("✗") + " " + msg }

// RenderLabel renders the key half of a "key: value" line.
func RenderLabel(label string) string { return Muted.Render(label) }

// RenderState renders onLabel in green when on, offLabel muted otherwise.
func RenderState(on bool, onLabel, offLabel string) string {
	if on {
		return okStyle.Render(onLabel)
	}
	return Muted.Render(offLabel)
}

// ciVars are set by common CI runners. JENKINS_HOME holds a path rather
// than a boolean.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "BUILDKITE"}

// IsNonInteractive reports whether nobody can answer a prompt. CI runners
// and MCPGATE_NON_INTERACTIVE=true count as non-interactive even on a TTY.
func IsNonInteractive() bool {
	if os.Getenv("MCPGATE_NON_INTERACTIVE") == "true" || os.Getenv("JENKINS_HOME") != "" {
		return true
	}
	for _, v := range ciVars {
		if val := os.Getenv(v); val == "true" || val == "1" {
			return true
		}
	}
	return !term.IsTerminal(int(os.Stdin.Fd()))
}
