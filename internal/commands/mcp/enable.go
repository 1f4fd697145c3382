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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
)

func newEnableCommand(enable bool) *cobra.Command {
	verb, short := "disable", "Disable the gateway or one server"
	if enable {
		verb, short = "enable", "Enable the gateway or one server"
	}

	return &cobra.Command{
		Use:   verb + " [name]",
		Short: short,
		Long: fmt.Sprintf(`Without a name, %s the whole gateway (settings.yaml mcp.enabled).
With a name, %s that server in mcp.json.`, verb+"s", verb+"s"),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runEnable(e, name, enable)
		},
	}
}

func runEnable(e *env, name string, enable bool) error {
	label := "gateway"
	if name == "" {
		if err := e.settings.SetMCPEnabled(enable); err != nil {
			return err
		}
	} else {
		cfg, configs, err := e.provider(name)
		if err != nil {
			return err
		}
		cfg.Enabled = enable
		if err := e.store.Save(configs); err != nil {
			return err
		}
		label = name
	}

	if shared.GetJSON() {
		type enableResponse struct {
			shared.JSONResponse
			Target  string `json:"target"`
			Enabled bool   `json:"enabled"`
		}
		return shared.EmitJSON(enableResponse{
			JSONResponse: shared.NewJSONResponse("mcp enable"),
			Target:       label,
			Enabled:      enable,
		})
	}
	fmt.Fprintf(shared.Output(), "%s %s\n", label, shared.RenderState(enable, "enabled", "disabled"))
	return nil
}
