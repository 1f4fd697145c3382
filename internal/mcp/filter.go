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
	"log/slog"

	"github.com/tombee/mcpgate/internal/log"
)

// ProviderLister returns the current provider configs.
type ProviderLister func() []*ProviderConfig

// ToolFilter wraps a ToolSource and removes every tool disabled by an
// enabled provider. Remaining tools keep their original executors.
type ToolFilter struct {
	inner     ToolSource
	providers ProviderLister
	logger    *slog.Logger
}

// NewToolFilter wraps inner. providers is consulted on every listing.
func NewToolFilter(inner ToolSource, providers ProviderLister, logger *slog.Logger) *ToolFilter {
	return &ToolFilter{
		inner:     inner,
		providers: providers,
		logger:    log.WithComponent(logger, "tool-filter"),
	}
}

// DisabledTools is the union of disabledTools across enabled providers.
// Disabled providers do not contribute.
func DisabledTools(providers []*ProviderConfig) map[string]struct{} {
	disabled := make(map[string]struct{})
	for _, p := range providers {
		if p == nil || !p.Enabled {
			continue
		}
		for _, name := range p.DisabledTools {
			disabled[name] = struct{}{}
		}
	}
	return disabled
}

// ListTools returns the inner tools minus the disabled set.
func (f *ToolFilter) ListTools(ctx context.Context) ([]Tool, error) {
	if f.inner == nil {
		return nil, nil
	}
	tools, err := f.inner.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	var disabled map[string]struct{}
	if f.providers != nil {
		disabled = DisabledTools(f.providers())
	}
	if len(disabled) == 0 {
		return tools, nil
	}

	kept := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		if _, off := disabled[tool.Name()]; off {
			f.logger.Debug("tool disabled, hiding", log.ToolKey, tool.Name())
			continue
		}
		kept = append(kept, tool)
	}
	recordFiltered(len(tools) - len(kept))
	return kept, nil
}
