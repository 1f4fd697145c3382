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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/mcpgate/internal/commands/shared"
)

const docsBaseURL = "https://tombee.github.io/mcpgate"

// CommandMetadata describes one command for JSON help.
type CommandMetadata struct {
	// Name is the command path below the root, e.g. "mcp registry add".
	Name        string         `json:"name"`
	Short       string         `json:"short"`
	Long        string         `json:"long,omitempty"`
	Usage       string         `json:"usage"`
	Flags       []FlagMetadata `json:"flags,omitempty"`
	Examples    string         `json:"examples,omitempty"`
	Subcommands []string       `json:"subcommands,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
	Runnable    bool           `json:"runnable"`
}

// FlagMetadata describes one flag.
type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
}

// HelpResponse is the JSON response for the help command.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata `json:"commands,omitempty"`
	Command     *CommandMetadata  `json:"command,omitempty"`
	GlobalFlags []FlagMetadata    `json:"global_flags,omitempty"`
	DocsURL     string            `json:"docs_url"`
}

// NewHelpCommand creates the help command
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command...]",
		Short: "Help about any command",
		Long: `Help provides detailed information about commands and their usage.

Run 'mcpgate help' to see all available commands.
Run 'mcpgate help mcp registry add' to see help for a nested command.
With --json every command in the tree is listed by its full path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if !shared.GetJSON() {
					return rootCmd.Help()
				}
				var commands []CommandMetadata
				walkCommands(rootCmd, func(c *cobra.Command) {
					commands = append(commands, commandMetadata(rootCmd, c))
				})
				return emitHelp(cmd, rootCmd, HelpResponse{Commands: commands})
			}

			target, rest, err := rootCmd.Find(args)
			if err != nil || len(rest) > 0 || target == rootCmd {
				return shared.NewNotFoundError(fmt.Sprintf("unknown command %q", strings.Join(args, " ")), err)
			}
			if !shared.GetJSON() {
				return target.Help()
			}
			meta := commandMetadata(rootCmd, target)
			return emitHelp(cmd, rootCmd, HelpResponse{Command: &meta})
		},
	}
}

func emitHelp(cmd, rootCmd *cobra.Command, resp HelpResponse) error {
	resp.JSONResponse = shared.NewJSONResponse("help")
	resp.GlobalFlags = flagMetadata(rootCmd.PersistentFlags())
	resp.DocsURL = docsBaseURL + "/reference/cli/"

	restore := shared.SetOutputForTest(cmd.OutOrStdout())
	defer restore()
	return shared.EmitJSON(resp)
}

// walkCommands visits every visible command below root, depth first.
func walkCommands(root *cobra.Command, fn func(*cobra.Command)) {
	for _, c := range root.Commands() {
		if c.Hidden || c.Name() == "help" {
			continue
		}
		fn(c)
		walkCommands(c, fn)
	}
}

func commandMetadata(rootCmd, cmd *cobra.Command) CommandMetadata {
	meta := CommandMetadata{
		Name:     strings.TrimPrefix(cmd.CommandPath(), rootCmd.Name()+" "),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Flags:    flagMetadata(cmd.LocalNonPersistentFlags()),
		Examples: cmd.Example,
		Aliases:  cmd.Aliases,
		Runnable: cmd.Runnable(),
	}
	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			meta.Subcommands = append(meta.Subcommands, sub.Name())
		}
	}
	return meta
}

func flagMetadata(fs *pflag.FlagSet) []FlagMetadata {
	var flags []FlagMetadata
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		flags = append(flags, FlagMetadata{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Usage:     f.Usage,
			Type:      f.Value.Type(),
			Default:   f.DefValue,
		})
	})
	return flags
}
