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

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
)

// newTestTree builds a root with a two-level command tree.
func newTestTree() *cobra.Command {
	rootCmd := NewRootCommand()

	group := &cobra.Command{Use: "mcp", Short: "MCP commands"}
	add := &cobra.Command{
		Use:     "add <name>",
		Short:   "Add a server",
		Example: "  mcpgate mcp add weather",
		RunE:    func(*cobra.Command, []string) error { return nil },
	}
	add.Flags().String("as", "", "Alias")
	add.Flags().StringArray("set", nil, "KEY=VALUE")
	group.AddCommand(add)
	group.AddCommand(&cobra.Command{Use: "secret", Hidden: true, RunE: func(*cobra.Command, []string) error { return nil }})
	rootCmd.AddCommand(group)

	rootCmd.SetHelpCommand(NewHelpCommand(rootCmd))
	return rootCmd
}

func executeHelp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { shared.SetJSONForTest(false) })

	rootCmd := newTestTree()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"help"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestHelpCommandJSON(t *testing.T) {
	t.Run("lists the whole tree", func(t *testing.T) {
		output, err := executeHelp(t, "--json")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		var resp HelpResponse
		if err := json.Unmarshal([]byte(output), &resp); err != nil {
			t.Fatalf("Failed to parse JSON output: %v\nOutput: %s", err, output)
		}
		if !resp.Success || resp.Version != "1.0" {
			t.Errorf("unexpected envelope: %+v", resp.JSONResponse)
		}
		if resp.DocsURL == "" {
			t.Error("expected docs_url to be set")
		}

		var names []string
		for _, c := range resp.Commands {
			names = append(names, c.Name)
		}
		if strings.Join(names, ",") != "mcp,mcp add" {
			t.Errorf("expected commands [mcp mcp add], got %v", names)
		}

		found := map[string]bool{}
		for _, f := range resp.GlobalFlags {
			found[f.Name] = true
		}
		for _, want := range []string{"verbose", "quiet", "json", "headless", "config", "providers"} {
			if !found[want] {
				t.Errorf("expected global flag %q", want)
			}
		}
	})

	t.Run("nested command", func(t *testing.T) {
		output, err := executeHelp(t, "mcp", "add", "--json")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		var resp HelpResponse
		if err := json.Unmarshal([]byte(output), &resp); err != nil {
			t.Fatalf("Failed to parse JSON output: %v\nOutput: %s", err, output)
		}
		if resp.Command == nil {
			t.Fatal("expected command metadata")
		}
		if resp.Command.Name != "mcp add" {
			t.Errorf("expected name 'mcp add', got %q", resp.Command.Name)
		}
		if !resp.Command.Runnable {
			t.Error("expected add to be runnable")
		}
		if len(resp.Command.Flags) != 2 {
			t.Errorf("expected 2 local flags, got %+v", resp.Command.Flags)
		}
		if len(resp.Commands) > 0 {
			t.Errorf("expected no command list, got %d", len(resp.Commands))
		}
	})

	t.Run("group lists visible subcommands only", func(t *testing.T) {
		output, err := executeHelp(t, "mcp", "--json")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		var resp HelpResponse
		if err := json.Unmarshal([]byte(output), &resp); err != nil {
			t.Fatalf("Failed to parse JSON output: %v", err)
		}
		if got := resp.Command.Subcommands; len(got) != 1 || got[0] != "add" {
			t.Errorf("expected [add], got %v", got)
		}
	})
}

func TestHelpCommandUnknown(t *testing.T) {
	_, err := executeHelp(t, "nope")
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if code := shared.ExitCode(err); code != shared.ExitNotFound {
		t.Errorf("expected exit code %d, got %d", shared.ExitNotFound, code)
	}
}

func TestHelpCommandHumanOutput(t *testing.T) {
	output, err := executeHelp(t)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("expected human output, got JSON")
	}
	if !strings.Contains(output, "mcpgate") {
		t.Errorf("expected root usage in output: %s", output)
	}
}
