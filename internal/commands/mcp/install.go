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

	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
	"github.com/tombee/mcpgate/internal/mcp/install"
)

func (e *env) installer() (*install.Installer, error) {
	cfg := e.settings.Config().Install
	return install.New(install.Config{
		BaseDir:        cfg.BaseDir,
		CommandTimeout: cfg.CommandTimeout,
		Logger:         e.logger,
	})
}

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install <repository-url>",
		Short: "Clone and build a Java MCP server, then add it to mcp.json",
		Long: `Clone a repository, build it with Maven or Gradle and register the
largest resulting jar as a stdio server run with "java -jar".

Requires git, java and either a Gradle wrapper, gradle or mvn on PATH.`,
		Example: `  mcpgate mcp install https://github.com/acme/weather-mcp.git`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			inst, err := e.installer()
			if err != nil {
				return err
			}
			return runInstall(cmd.Context(), e, inst, args[0])
		},
	}
}

func runInstall(ctx context.Context, e *env, inst *install.Installer, repoURL string) error {
	name, err := install.RepositoryName(repoURL)
	if err != nil {
		return shared.NewInvalidUsageError("cannot derive a server name from the URL", err)
	}

	configs, err := e.store.Load()
	if err != nil {
		return err
	}
	if _, exists := configs[name]; exists {
		return mcpgw.ErrServerAlreadyExists(name)
	}

	if !shared.GetJSON() && !shared.GetQuiet() {
		fmt.Fprintf(shared.Output(), "Installing %s into %s...\n", name, inst.BaseDir())
	}

	cfg, err := inst.Install(ctx, repoURL)
	if err != nil {
		return err
	}

	configs[cfg.Name] = cfg
	if err := e.store.Save(configs); err != nil {
		// Do not leave an unreferenced build behind.
		if rmErr := inst.Uninstall(cfg); rmErr != nil {
			e.logger.Warn("failed to remove install after save error", "server", cfg.Name, "error", rmErr)
		}
		return err
	}

	if shared.GetJSON() {
		type installResponse struct {
			shared.JSONResponse
			Server serverStatus `json:"server"`
		}
		return shared.EmitJSON(installResponse{
			JSONResponse: shared.NewJSONResponse("mcp install"),
			Server: serverStatus{
				Name:      cfg.Name,
				Transport: string(cfg.Transport()),
				Enabled:   cfg.Enabled,
				Target:    target(cfg),
				Installed: true,
			},
		})
	}
	fmt.Fprintln(shared.Output(), shared.RenderOK(fmt.Sprintf("Installed %s (%s)", cfg.Name, cfg.InstallPath)))
	return nil
}

func newUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove a locally installed server and its mcp.json entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			inst, err := e.installer()
			if err != nil {
				return err
			}
			return runUninstall(e, inst, args[0])
		},
	}
}

func runUninstall(e *env, inst *install.Installer, name string) error {
	cfg, configs, err := e.provider(name)
	if err != nil {
		return err
	}
	if err := inst.Uninstall(cfg); err != nil {
		return err
	}

	delete(configs, name)
	if err := e.store.Save(configs); err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(shared.NewJSONResponse("mcp uninstall"))
	}
	fmt.Fprintln(shared.Output(), shared.RenderOK("Uninstalled "+name))
	return nil
}

func newDiscoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [query]",
		Short: "Search GitHub for installable MCP server repositories",
		Example: `  mcpgate mcp discover
  mcpgate mcp discover "mcp-server language:java weather"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := install.DefaultGitHubQuery
			if len(args) == 1 {
				query = args[0]
			}
			return runDiscover(cmd.Context(), &install.GitHubSearch{}, query)
		},
	}
}

func runDiscover(ctx context.Context, search *install.GitHubSearch, query string) error {
	repos, err := search.Search(ctx, query)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type discoverResponse struct {
			shared.JSONResponse
			Repositories []install.GitHubRepo `json:"repositories"`
		}
		return shared.EmitJSON(discoverResponse{
			JSONResponse: shared.NewJSONResponse("mcp discover"),
			Repositories: repos,
		})
	}

	out := shared.Output()
	if len(repos) == 0 {
		fmt.Fprintln(out, "No repositories found.")
		return nil
	}
	fmt.Fprintf(out, "%-40s %6s  %s\n", "REPOSITORY", "STARS", "DESCRIPTION")
	for _, r := range repos {
		fmt.Fprintf(out, "%-40s %6d  %s\n", truncate(r.FullName, 40), r.Stars, truncate(firstLine(r.Description), 50))
	}
	fmt.Fprintf(out, "\n%s mcpgate mcp install <clone-url>\n", shared.RenderLabel("Install with:"))
	return nil
}
