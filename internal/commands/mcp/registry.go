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
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
	"github.com/tombee/mcpgate/internal/jq"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
	"github.com/tombee/mcpgate/internal/mcp/registry"
	"github.com/tombee/mcpgate/internal/secrets"
)

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Search the MCP registry and add servers from it",
	}
	cmd.AddCommand(newRegistrySearchCommand())
	cmd.AddCommand(newRegistryListCommand())
	cmd.AddCommand(newRegistryAddCommand())
	return cmd
}

func (e *env) registryClient() (*registry.Client, error) {
	cfg := e.settings.Config().Registry
	return registry.New(registry.Config{
		BaseURL:           cfg.BaseURL,
		PageSize:          cfg.PageSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            e.logger,
	})
}

type registryRow struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

func registryRows(entries []registry.ServerEntry) []registryRow {
	rows := make([]registryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, registryRow{
			Name:        e.Server.Name,
			Type:        registry.Classify(e.Server),
			Version:     e.Server.Version,
			Description: e.Server.Description,
		})
	}
	return rows
}

func printRegistryRows(rows []registryRow) {
	out := shared.Output()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No servers found.")
		return
	}
	fmt.Fprintf(out, "%-40s %-8s %-10s %s\n", "NAME", "TYPE", "VERSION", "DESCRIPTION")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, r := range rows {
		fmt.Fprintf(out, "%-40s %-8s %-10s %s\n", truncate(r.Name, 40), r.Type, truncate(r.Version, 10), truncate(firstLine(r.Description), 40))
	}
}

func newRegistrySearchCommand() *cobra.Command {
	var cursor string
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Fetch one page of registry results",
		Example: `  mcpgate mcp registry search github
  mcpgate mcp registry search github --cursor <next-cursor>`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runRegistrySearch(cmd.Context(), e, query, cursor, limit)
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 30, "Results per page")
	return cmd
}

func runRegistrySearch(ctx context.Context, e *env, query, cursor string, limit int) error {
	client, err := e.registryClient()
	if err != nil {
		return err
	}
	page, err := client.Search(ctx, query, cursor, limit)
	if err != nil {
		return err
	}

	rows := registryRows(page.Servers)
	if shared.GetJSON() {
		type searchResponse struct {
			shared.JSONResponse
			Servers    []registryRow `json:"servers"`
			NextCursor string        `json:"next_cursor,omitempty"`
		}
		return shared.EmitJSON(searchResponse{
			JSONResponse: shared.NewJSONResponse("mcp registry search"),
			Servers:      rows,
			NextCursor:   page.Metadata.NextCursor,
		})
	}

	printRegistryRows(rows)
	if page.Metadata.NextCursor != "" {
		fmt.Fprintf(shared.Output(), "\n%s --cursor %s\n", shared.RenderLabel("More results:"), page.Metadata.NextCursor)
	}
	return nil
}

func newRegistryListCommand() *cobra.Command {
	var refresh bool
	var expr string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the whole registry",
		Long: `Page through the whole registry. The listing is cached for the
duration of the command; --refresh is accepted for scripts that reuse a
long-lived process.

--jq filters the raw entries with a jq expression and prints each result
as JSON.`,
		Example: `  mcpgate mcp registry list
  mcpgate mcp registry list --jq '.[] | select(.server.remotes) | .server.name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runRegistryList(cmd.Context(), e, refresh, expr)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore any cached listing")
	cmd.Flags().StringVar(&expr, "jq", "", "Filter entries with a jq expression")
	return cmd
}

func runRegistryList(ctx context.Context, e *env, refresh bool, expr string) error {
	var query *jq.Query
	if expr != "" {
		var err error
		if query, err = jq.Compile(expr); err != nil {
			return shared.NewInvalidUsageError("bad --jq expression", err)
		}
	}

	client, err := e.registryClient()
	if err != nil {
		return err
	}
	entries, err := client.FetchAll(ctx, refresh)
	if err != nil {
		return err
	}

	if query != nil {
		results, err := query.Run(ctx, entries)
		if err != nil {
			return err
		}
		for _, r := range results {
			if err := shared.EmitJSON(r); err != nil {
				return err
			}
		}
		return nil
	}

	rows := registryRows(entries)
	if shared.GetJSON() {
		type listResponse struct {
			shared.JSONResponse
			Servers []registryRow `json:"servers"`
		}
		return shared.EmitJSON(listResponse{JSONResponse: shared.NewJSONResponse("mcp registry list"), Servers: rows})
	}
	printRegistryRows(rows)
	return nil
}

// promptFunc asks for one input value.
type promptFunc func(in registry.Input) (string, error)

func newRegistryAddCommand() *cobra.Command {
	var alias string
	var assignments []string

	cmd := &cobra.Command{
		Use:   "add <registry-name>",
		Short: "Add a registry server to mcp.json",
		Long: `Look up a registry entry, ask for its headers or environment
variables, and append it to mcp.json.

Values marked secret are stored in the OS keychain and referenced from
mcp.json as "keyring:<server>/<name>". Without a keychain, set the
MCPGATE_SECRET_* environment variable printed by this command instead.`,
		Example: `  mcpgate mcp registry add io.github.acme/weather
  mcpgate mcp registry add io.github.acme/weather --as weather --set API_KEY=abc123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			values, err := parseAssignments(assignments)
			if err != nil {
				return shared.NewInvalidUsageError("bad --set value", err)
			}
			var prompt promptFunc
			if !shared.IsNonInteractive() {
				prompt = huhPrompt
			}
			client, err := e.registryClient()
			if err != nil {
				return err
			}
			return runRegistryAdd(cmd.Context(), e, client, newSecretResolver(), args[0], alias, values, prompt)
		},
	}
	cmd.Flags().StringVar(&alias, "as", "", "Server name in mcp.json (default: last segment of the registry name)")
	cmd.Flags().StringArrayVar(&assignments, "set", nil, "Provide a value as KEY=VALUE (repeatable)")
	return cmd
}

// secretStore is the part of the secrets resolver used by add.
type secretStore interface {
	Set(ctx context.Context, key, value, backendName string) error
}

func runRegistryAdd(ctx context.Context, e *env, client *registry.Client, store secretStore,
	registryName, alias string, values map[string]string, prompt promptFunc) error {

	info, err := findEntry(ctx, client, registryName)
	if err != nil {
		return err
	}
	if alias == "" {
		alias = path.Base(info.Name)
	}
	if values == nil {
		values = make(map[string]string)
	}

	configs, err := e.store.Load()
	if err != nil {
		return err
	}
	if _, exists := configs[alias]; exists {
		return mcpgw.ErrServerAlreadyExists(alias)
	}

	for _, in := range registry.Inputs(*info) {
		value := values[in.Name]
		if strings.TrimSpace(value) == "" && prompt != nil {
			if value, err = prompt(in); err != nil {
				return err
			}
		}
		if strings.TrimSpace(value) == "" {
			if in.Required && in.Default == "" {
				return shared.NewInvalidUsageError(fmt.Sprintf("%s requires a value for %s", info.Name, in.Name),
					fmt.Errorf("pass --set %s=<value>", in.Name))
			}
			continue
		}
		if in.Secret {
			value = storeSecret(ctx, store, alias+"/"+in.Name, value)
		}
		values[in.Name] = value
	}

	cfg := registry.Convert(*info, values)
	cfg.Name = alias
	if err := cfg.Validate(); err != nil {
		return err
	}

	configs[alias] = cfg
	if err := e.store.Save(configs); err != nil {
		return err
	}

	if shared.GetJSON() {
		type addResponse struct {
			shared.JSONResponse
			Server serverStatus `json:"server"`
		}
		return shared.EmitJSON(addResponse{
			JSONResponse: shared.NewJSONResponse("mcp registry add"),
			Server: serverStatus{
				Name:      alias,
				Transport: string(cfg.Transport()),
				Enabled:   cfg.Enabled,
				Target:    target(cfg),
			},
		})
	}
	fmt.Fprintln(shared.Output(), shared.RenderOK(fmt.Sprintf("Added %s (%s) as %q", info.Name, cfg.Transport(), alias)))
	return nil
}

// findEntry tries a search first and falls back to the full listing.
func findEntry(ctx context.Context, client *registry.Client, name string) (*registry.ServerInfo, error) {
	if page, err := client.Search(ctx, name, "", 50); err == nil {
		for i := range page.Servers {
			if page.Servers[i].Server.Name == name {
				return &page.Servers[i].Server, nil
			}
		}
	}
	info, err := client.Find(ctx, name)
	if err != nil {
		return nil, shared.NewNotFoundError("unknown registry entry", err)
	}
	return info, nil
}

// storeSecret saves value in the keychain and returns the reference to
// write in mcp.json. When the keychain is unavailable the reference is
// still returned and the user is told which environment variable to set.
func storeSecret(ctx context.Context, store secretStore, key, value string) string {
	if store != nil {
		if err := store.Set(ctx, key, value, "keychain"); err == nil {
			return secrets.Reference(key)
		}
	}
	fmt.Fprintln(os.Stderr, shared.RenderWarn(fmt.Sprintf(
		"keychain unavailable; export %s before using this server", secrets.EnvVarName(key))))
	return secrets.Reference(key)
}

func huhPrompt(in registry.Input) (string, error) {
	var value string

	title := in.Name
	if in.Required {
		title += " (required)"
	}
	input := huh.NewInput().
		Title(title).
		Description(in.Description).
		Placeholder(in.Default).
		Value(&value)
	if in.Secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if in.Required && in.Default == "" {
		input = input.Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("a value is required")
			}
			return nil
		})
	}

	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", &shared.ExitError{Code: shared.ExitInterrupted, Message: "cancelled"}
		}
		return "", fmt.Errorf("form cancelled: %w", err)
	}
	return value, nil
}
