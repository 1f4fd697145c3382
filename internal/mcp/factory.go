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
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tombee/mcpgate/internal/log"
	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

// livenessTimeout bounds the ping used to validate a cached client.
const livenessTimeout = 2 * time.Second

// SecretExpander resolves secret references (e.g. "keyring:github/token")
// inside env and header maps.
type SecretExpander interface {
	ExpandMap(ctx context.Context, values map[string]string) (map[string]string, error)
}

// ConnectFunc creates a connected client for one provider.
type ConnectFunc func(ctx context.Context, cfg ClientConfig) (ClientProvider, error)

// ClientFactoryConfig configures a ClientFactory.
type ClientFactoryConfig struct {
	// ToolTimeout bounds each tool call. Defaults to DefaultToolTimeout.
	ToolTimeout time.Duration

	// Version is reported to servers during initialize.
	Version string

	// Secrets expands secret references in env and headers. Optional.
	Secrets SecretExpander

	// Traffic receives protocol traffic from every client. Optional.
	Traffic *TrafficLog

	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger

	// Connect overrides client construction. Defaults to NewClient.
	Connect ConnectFunc
}

type cachedClient struct {
	client      ClientProvider
	fingerprint string
}

// ClientFactory turns provider configs into connected clients and
// aggregates them into a ToolSource. Clients are cached by provider name
// and reused until their config changes or they stop answering pings.
type ClientFactory struct {
	cfg    ClientFactoryConfig
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*cachedClient
}

// NewClientFactory creates a client factory.
func NewClientFactory(cfg ClientFactoryConfig) *ClientFactory {
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.Connect == nil {
		cfg.Connect = func(ctx context.Context, cc ClientConfig) (ClientProvider, error) {
			return NewClient(ctx, cc)
		}
	}
	return &ClientFactory{
		cfg:    cfg,
		logger: log.WithComponent(cfg.Logger, "client-factory"),
		cache:  make(map[string]*cachedClient),
	}
}

// CreateToolSource connects every enabled provider and aggregates their
// tools. A provider that cannot be connected is logged and skipped. When
// no provider is enabled or none connects, the result is nil.
func (f *ClientFactory) CreateToolSource(ctx context.Context, providers []*ProviderConfig) ToolSource {
	clients := f.Connect(ctx, providers)
	if len(clients) == 0 {
		f.logger.Debug("no MCP tools available")
		return nil
	}
	return NewClientSource(clients, f.cfg.Logger)
}

// Connect returns a connected client for every enabled provider that could
// be reached, in name order. Cached clients of providers that are gone or
// disabled are closed.
func (f *ClientFactory) Connect(ctx context.Context, providers []*ProviderConfig) []ClientProvider {
	enabled := make([]*ProviderConfig, 0, len(providers))
	for _, p := range providers {
		if p != nil && p.Enabled {
			enabled = append(enabled, p)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Name < enabled[j].Name })

	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := make(map[string]bool, len(enabled))
	clients := make([]ClientProvider, 0, len(enabled))
	for _, p := range enabled {
		wanted[p.Name] = true
		c, err := f.clientFor(ctx, p)
		if err != nil {
			recordClientFailure(p.Name)
			f.logger.Error("failed to create MCP client, skipping server",
				log.ServerKey, p.Name,
				log.TransportKey, string(p.Transport()),
				log.Error(&pkgerrors.LaunchError{Server: p.Name, Cause: err}))
			continue
		}
		clients = append(clients, c)
	}

	for name, cached := range f.cache {
		if !wanted[name] {
			f.closeLocked(name, cached)
		}
	}
	return clients
}

// clientFor returns the cached client when it is current and alive, and
// connects a new one otherwise. Callers hold f.mu.
func (f *ClientFactory) clientFor(ctx context.Context, p *ProviderConfig) (ClientProvider, error) {
	fp := fingerprint(p)
	if cached, ok := f.cache[p.Name]; ok {
		if cached.fingerprint == fp && f.alive(ctx, cached.client) {
			return cached.client, nil
		}
		f.closeLocked(p.Name, cached)
	}

	resolved, err := f.resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	c, err := f.cfg.Connect(ctx, ClientConfig{
		Provider: resolved,
		Timeout:  f.cfg.ToolTimeout,
		Version:  f.cfg.Version,
		Traffic:  f.cfg.Traffic,
		Logger:   f.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	f.cache[p.Name] = &cachedClient{client: c, fingerprint: fp}
	f.logger.Info("MCP client ready", log.ServerKey, p.Name, log.TransportKey, string(p.Transport()))
	return c, nil
}

func (f *ClientFactory) alive(ctx context.Context, c ClientProvider) bool {
	ctx, cancel := context.WithTimeout(ctx, livenessTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		f.logger.Warn("cached MCP client is not responding, reconnecting",
			log.ServerKey, c.ServerName(), log.Error(err))
		return false
	}
	return true
}

// resolve returns a copy of p with secret references expanded.
func (f *ClientFactory) resolve(ctx context.Context, p *ProviderConfig) (*ProviderConfig, error) {
	resolved := p.Clone()
	if f.cfg.Secrets == nil {
		return resolved, nil
	}

	env, err := f.cfg.Secrets.ExpandMap(ctx, p.Env)
	if err != nil {
		return nil, err
	}
	headers, err := f.cfg.Secrets.ExpandMap(ctx, p.Headers)
	if err != nil {
		return nil, err
	}
	resolved.Env = env
	resolved.Headers = headers
	return resolved, nil
}

func (f *ClientFactory) closeLocked(name string, cached *cachedClient) {
	delete(f.cache, name)
	if err := cached.client.Close(); err != nil {
		f.logger.Warn("failed to close MCP client", log.ServerKey, name, log.Error(err))
	}
}

// Cached returns the names of providers with a cached client, sorted.
func (f *ClientFactory) Cached() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.cache)
}

// ClearCache closes and forgets every cached client.
func (f *ClientFactory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, cached := range f.cache {
		f.closeLocked(name, cached)
	}
}

// Close releases all clients.
func (f *ClientFactory) Close() error {
	f.ClearCache()
	return nil
}

// fingerprint identifies the connection-relevant parts of a provider.
func fingerprint(p *ProviderConfig) string {
	b, err := json.Marshal(struct {
		Transport TransportType
		Command   string
		Args      []string
		WorkDir   string
		URL       string
		Headers   map[string]string
		Env       map[string]string
	}{p.Transport(), p.Command, p.Args, p.WorkingDirectory, p.URL, p.Headers, p.Env})
	if err != nil {
		return ""
	}
	return string(b)
}
