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
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

// fakeRegistry serves queued responses and records request queries.
type fakeRegistry struct {
	mu        sync.Mutex
	responses []fakeResponse
	queries   []url.Values
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeRegistry) enqueue(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{status: status, body: body})
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	resp := fakeResponse{status: http.StatusInternalServerError, body: "no response queued"}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	fmt.Fprint(w, resp.body)
}

func (f *fakeRegistry) requests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.queries...)
}

func newTestClient(t *testing.T) (*Client, *fakeRegistry) {
	t.Helper()
	fake := &fakeRegistry{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	c, err := New(Config{BaseURL: ts.URL + "/v0.1/servers", HTTPClient: ts.Client()})
	require.NoError(t, err)
	return c, fake
}

func page(cursor string, names ...string) string {
	servers := ""
	for i, name := range names {
		if i > 0 {
			servers += ","
		}
		servers += fmt.Sprintf(`{"server":{"name":%q,"remotes":[{"type":"streamable-http","url":"https://%s/mcp"}]},"_meta":{}}`, name, name)
	}
	return fmt.Sprintf(`{"servers":[%s],"metadata":{"nextCursor":%q,"count":%d}}`, servers, cursor, len(names))
}

func TestSearch_QueryParameters(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		cursor     string
		limit      int
		wantQuery  map[string]string
		wantAbsent []string
	}{
		{
			name:       "query",
			query:      "my-search",
			limit:      50,
			wantQuery:  map[string]string{"q": "my-search", "limit": "50"},
			wantAbsent: []string{"cursor"},
		},
		{
			name:       "cursor",
			cursor:     "abc123",
			limit:      100,
			wantQuery:  map[string]string{"cursor": "abc123", "limit": "100"},
			wantAbsent: []string{"q"},
		},
		{
			name:       "blank values omitted",
			query:      "  ",
			cursor:     " ",
			limit:      10,
			wantQuery:  map[string]string{"limit": "10"},
			wantAbsent: []string{"q", "cursor"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			fake.enqueue(http.StatusOK, page(""))

			_, err := c.Search(context.Background(), tt.query, tt.cursor, tt.limit)
			require.NoError(t, err)

			reqs := fake.requests()
			require.Len(t, reqs, 1)
			for key, want := range tt.wantQuery {
				assert.Equal(t, want, reqs[0].Get(key), key)
			}
			for _, key := range tt.wantAbsent {
				assert.False(t, reqs[0].Has(key), "%s should be absent", key)
			}
		})
	}
}

func TestSearch_ParsesServers(t *testing.T) {
	c, fake := newTestClient(t)
	fake.enqueue(http.StatusOK, `{
		"servers": [{
			"server": {
				"name": "io.github.example/weather",
				"description": "Weather data",
				"version": "1.2.0",
				"repository": {"url": "https://github.com/example/weather", "source": "github"},
				"packages": [{
					"registryType": "npm",
					"identifier": "@example/weather",
					"environmentVariables": [{"name": "API_KEY", "isRequired": true, "isSecret": true}]
				}]
			},
			"_meta": {"io.modelcontextprotocol.registry/official": {"status": "active"}}
		}],
		"metadata": {"nextCursor": "next", "count": 1}
	}`)

	resp, err := c.Search(context.Background(), "weather", "", 10)
	require.NoError(t, err)

	require.Len(t, resp.Servers, 1)
	info := resp.Servers[0].Server
	assert.Equal(t, "io.github.example/weather", info.Name)
	assert.Equal(t, "https://github.com/example/weather", info.Repository.URL)
	require.Len(t, info.Packages, 1)
	assert.Equal(t, "API_KEY", info.Packages[0].EnvironmentVariables[0].Name)
	assert.True(t, info.Packages[0].EnvironmentVariables[0].IsSecret)
	assert.Equal(t, "next", resp.Metadata.NextCursor)
	assert.Equal(t, TypeNPM, Classify(info))
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantReason string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "{}", wantStatus: 500},
		{name: "not found", status: http.StatusNotFound, body: "", wantStatus: 404},
		{name: "empty body", status: http.StatusOK, body: "", wantReason: "returned empty response"},
		{name: "whitespace body", status: http.StatusOK, body: "  \n", wantReason: "returned empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			fake.enqueue(tt.status, tt.body)

			_, err := c.Search(context.Background(), "", "", 100)
			require.Error(t, err)

			var regErr *pkgerrors.RegistryError
			require.True(t, errors.As(err, &regErr))
			assert.Equal(t, tt.wantStatus, regErr.StatusCode)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, regErr.Reason)
			}
		})
	}
}

func TestSearch_NullBody(t *testing.T) {
	c, fake := newTestClient(t)
	fake.enqueue(http.StatusOK, "null")

	resp, err := c.Search(context.Background(), "", "", 100)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Empty(t, resp.Servers)
}

func TestFetchAll_Pagination(t *testing.T) {
	c, fake := newTestClient(t)
	fake.enqueue(http.StatusOK, page("cursor-1", "a", "b"))
	fake.enqueue(http.StatusOK, page("cursor-2", "c"))
	fake.enqueue(http.StatusOK, page("   ", "d"))

	all, err := c.FetchAll(context.Background(), false)
	require.NoError(t, err)

	var names []string
	for _, e := range all {
		names = append(names, e.Server.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)

	reqs := fake.requests()
	require.Len(t, reqs, 3)
	assert.False(t, reqs[0].Has("cursor"))
	assert.Equal(t, "cursor-1", reqs[1].Get("cursor"))
	assert.Equal(t, "cursor-2", reqs[2].Get("cursor"))
	for _, q := range reqs {
		assert.Equal(t, "100", q.Get("limit"))
		assert.False(t, q.Has("q"))
	}
}

func TestFetchAll_Cache(t *testing.T) {
	c, fake := newTestClient(t)
	fake.enqueue(http.StatusOK, page("", "a"))
	fake.enqueue(http.StatusOK, page("", "a", "b"))

	first, err := c.FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := c.FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Len(t, fake.requests(), 1)

	refreshed, err := c.FetchAll(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)
	assert.Len(t, fake.requests(), 2)
}

func TestFetchAll_EmptyResponse(t *testing.T) {
	c, fake := newTestClient(t)
	fake.enqueue(http.StatusOK, `{}`)

	all, err := c.FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFetchAll_ErrorIsNotCached(t *testing.T) {
	c, fake := newTestClient(t)
	fake.enqueue(http.StatusOK, page("more", "a"))
	fake.enqueue(http.StatusBadGateway, "")
	fake.enqueue(http.StatusOK, page("", "a"))

	_, err := c.FetchAll(context.Background(), false)
	require.Error(t, err)

	all, err := c.FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFetchAll_RateLimitHonoursContext(t *testing.T) {
	fake := &fakeRegistry{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	c, err := New(Config{BaseURL: ts.URL, HTTPClient: ts.Client(), RequestsPerSecond: 0.001})
	require.NoError(t, err)
	fake.enqueue(http.StatusOK, page("more", "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.FetchAll(ctx, false)
	require.Error(t, err)
	assert.Empty(t, fake.requests())
}

func TestFind(t *testing.T) {
	c, fake := newTestClient(t)
	fake.enqueue(http.StatusOK, page("", "alpha", "beta"))

	info, err := c.Find(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, "https://beta/mcp", info.Remotes[0].URL)

	_, err = c.Find(context.Background(), "gamma")
	var notFound *pkgerrors.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "gamma", notFound.ID)
}
