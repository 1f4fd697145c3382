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
	"log/slog"
	"os"
	"strings"

	"github.com/tombee/mcpgate/internal/commands/shared"
	"github.com/tombee/mcpgate/internal/config"
	"github.com/tombee/mcpgate/internal/log"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
	"github.com/tombee/mcpgate/internal/secrets"
)

// env bundles what every subcommand needs: settings, the provider store
// and a logger.
type env struct {
	settings *config.Store
	store    *mcpgw.ConfigStore
	logger   *slog.Logger
}

func loadEnv() (*env, error) {
	settings, err := config.OpenStore(shared.GetConfigPath())
	if err != nil {
		return nil, err
	}

	// Environment variables win over settings.yaml.
	cfg := settings.Config()
	logCfg := log.FromEnv()
	if cfg.Log.Level != "" && os.Getenv("MCPGATE_LOG_LEVEL") == "" && os.Getenv("MCPGATE_DEBUG") == "" {
		logCfg.Level = strings.ToLower(cfg.Log.Level)
	}
	if cfg.Log.Format != "" && os.Getenv("MCPGATE_LOG_FORMAT") == "" {
		logCfg.Format = log.Format(strings.ToLower(cfg.Log.Format))
	}
	switch {
	case shared.GetVerbose():
		logCfg.Level = "debug"
	case shared.GetQuiet():
		logCfg.Level = "error"
	}
	logger := log.New(logCfg)

	path := shared.GetProvidersPath()
	if path == "" {
		if path, err = settings.ProvidersPath(); err != nil {
			return nil, err
		}
	}

	return &env{
		settings: settings,
		store:    mcpgw.NewConfigStore(mcpgw.ConfigStoreConfig{Path: path, Logger: logger}),
		logger:   logger,
	}, nil
}

// provider loads mcp.json and returns the named provider.
func (e *env) provider(name string) (*mcpgw.ProviderConfig, map[string]*mcpgw.ProviderConfig, error) {
	configs, err := e.store.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg, ok := configs[name]
	if !ok {
		return nil, configs, shared.NewNotFoundError("unknown server", mcpgw.ErrServerNotFound(name))
	}
	return cfg, configs, nil
}

// newSecretResolver reads secrets from the environment first, then the keychain.
func newSecretResolver() *secrets.Resolver {
	return secrets.NewResolver(secrets.NewEnvBackend(), secrets.NewKeychainBackend())
}

func version() string {
	v, _, _ := shared.GetVersion()
	return v
}
