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

package install

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tombee/mcpgate/pkg/httpclient"
)

// DefaultGitHubSearchURL is the repository search endpoint.
const DefaultGitHubSearchURL = "https://api.github.com/search/repositories"

// DefaultGitHubQuery finds Java MCP servers.
const DefaultGitHubQuery = "mcp-server language:java"

// GitHubRepo is a repository search hit.
type GitHubRepo struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	CloneURL      string    `json:"clone_url"`
	Stars         int       `json:"stargazers_count"`
	UpdatedAt     time.Time `json:"updated_at"`
	DefaultBranch string    `json:"default_branch"`
}

// GitHubSearch finds installable repositories, most starred first.
type GitHubSearch struct {
	// URL defaults to DefaultGitHubSearchURL.
	URL string

	// Client defaults to an httpclient client.
	Client *http.Client
}

// Search runs query (DefaultGitHubQuery when blank).
func (s *GitHubSearch) Search(ctx context.Context, query string) ([]GitHubRepo, error) {
	if query == "" {
		query = DefaultGitHubQuery
	}
	endpoint := s.URL
	if endpoint == "" {
		endpoint = DefaultGitHubSearchURL
	}

	hc := s.Client
	if hc == nil {
		var err error
		if hc, err = httpclient.New(httpclient.DefaultConfig()); err != nil {
			return nil, err
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("sort", "stars")
	q.Set("order", "desc")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GitHub search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub search returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Items []GitHubRepo `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode GitHub search response: %w", err)
	}

	for i := range result.Items {
		if result.Items[i].Description == "" {
			result.Items[i].Description = "No description"
		}
		if result.Items[i].DefaultBranch == "" {
			result.Items[i].DefaultBranch = "master"
		}
	}
	return result.Items, nil
}
