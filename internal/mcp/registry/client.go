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

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/mcpgate/internal/log"
	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
	"github.com/tombee/mcpgate/pkg/httpclient"
)

const (
	// DefaultBaseURL is the public MCP registry.
	DefaultBaseURL = "https://registry.modelcontextprotocol.io/v0.1/servers"

	// DefaultPageSize is the page size used by FetchAll.
	DefaultPageSize = 100

	// maxResponseSize caps a single page body.
	maxResponseSize = 16 << 20
)

// Config configures a registry Client.
type Config struct {
	// BaseURL is the servers endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// PageSize is the limit used by FetchAll. Defaults to DefaultPageSize.
	PageSize int

	// RequestsPerSecond limits page requests made by FetchAll. Zero
	// disables limiting.
	RequestsPerSecond float64

	// HTTPClient overrides the HTTP client. Defaults to an httpclient
	// client without retries.
	HTTPClient *http.Client

	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client queries the provider catalog. The full listing is cached in memory
// for the lifetime of the Client.
type Client struct {
	baseURL  string
	pageSize int
	limiter  *rate.Limiter
	http     *http.Client
	logger   *slog.Logger

	mu     sync.Mutex
	cache  []ServerEntry
	cached bool
}

// New creates a registry client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, &pkgerrors.ValidationError{Field: "base_url", Message: err.Error()}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hcfg := httpclient.DefaultConfig()
		hcfg.RetryAttempts = 0
		var err error
		hc, err = httpclient.New(hcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		limiter:  rate.NewLimiter(limit, 1),
		http:     hc,
		logger:   log.WithComponent(cfg.Logger, "registry"),
	}, nil
}

// Search fetches one page. Blank query and cursor are left out of the
// request. A non-2xx status or an empty body is a RegistryError.
func (c *Client) Search(ctx context.Context, query, cursor string, limit int) (*Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &pkgerrors.RegistryError{Reason: "has an invalid base URL", Cause: err}
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if strings.TrimSpace(query) != "" {
		q.Set("q", query)
	}
	if strings.TrimSpace(cursor) != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		recordRequest("error")
		return nil, &pkgerrors.RegistryError{Reason: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		recordRequest("http_error")
		return nil, &pkgerrors.RegistryError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		recordRequest("error")
		return nil, &pkgerrors.RegistryError{Reason: "response could not be read", Cause: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		recordRequest("empty")
		return nil, &pkgerrors.RegistryError{Reason: "returned empty response"}
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		recordRequest("error")
		return nil, &pkgerrors.RegistryError{Reason: "returned an invalid response", Cause: err}
	}
	recordRequest("ok")

	c.logger.Debug("registry page fetched",
		"query", query,
		"servers", len(result.Servers),
		"next_cursor", result.Metadata.NextCursor,
		log.DurationKey, time.Since(start).Milliseconds())
	return &result, nil
}

// FetchAll pages through the whole catalog and caches the result. Without
// forceRefresh a cached listing is returned with no network call.
func (c *Client) FetchAll(ctx context.Context, forceRefresh bool) ([]ServerEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached && !forceRefresh {
		return c.cache, nil
	}

	var all []ServerEntry
	cursor := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := c.Search(ctx, "", cursor, c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Servers...)

		cursor = page.Metadata.NextCursor
		if strings.TrimSpace(cursor) == "" {
			break
		}
	}

	c.cache = all
	c.cached = true
	c.logger.Info("registry listing cached", "servers", len(all))
	return all, nil
}

// Find returns the catalog entry named name, using the cached listing
// when present.
func (c *Client) Find(ctx context.Context, name string) (*ServerInfo, error) {
	entries, err := c.FetchAll(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Server.Name == name {
			return &entries[i].Server, nil
		}
	}
	return nil, &pkgerrors.NotFoundError{Resource: "registry entry", ID: name}
}
