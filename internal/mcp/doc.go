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

/*
Package mcp is the client side of the Model Context Protocol gateway: it
reads provider definitions, runs local providers, connects to local and
remote providers, and exposes their tools as one filtered, approval-gated
tool surface.

# Overview

  - ConfigStore: parses, validates and exports mcp.json
  - Supervisor: starts, monitors and stops STDIO provider processes
  - ClientFactory: connects providers over stdio, streamable HTTP or SSE
  - ToolFilter: hides tools listed in a provider's disabledTools
  - ApprovalGate: asks the user before each tool call, with a timeout
  - TrafficLog: classifies protocol traffic for observability
  - Watcher: reloads mcp.json when it changes

# Configuration

	{
	  "mcpServers": {
	    "filesystem": {
	      "command": "npx",
	      "args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
	    },
	    "remote": {
	      "transport": "http",
	      "url": "https://example.com/mcp",
	      "headers": {"Authorization": "keyring:remote/token"}
	    }
	  }
	}

Values of the form keyring:<key> in env and headers are resolved from the
secret store when the client is created.

# Tool surface

	gw := mcp.NewGateway(mcp.GatewayConfig{
	    Providers: watcher.Providers,
	    Settings:  settings,
	    Approver:  approval.NewPrompter(),
	})
	defer gw.Close()

	tools, err := gw.ListTools(ctx)
	result, err := gw.Execute(ctx, "read_file", `{"path":"/tmp/x"}`, sessionID)

A denied or timed-out approval is not an error: Execute returns
DeniedMessage and the provider is never called.
*/
package mcp
