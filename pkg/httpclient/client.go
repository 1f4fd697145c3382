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

// Package httpclient builds the outbound HTTP clients used for the registry,
// GitHub discovery and remote MCP transports.
//
// Every client sets a User-Agent, injects the active trace context and logs
// each request with secrets stripped from the URL. GET and HEAD requests can
// be retried on transient failures.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config configures New.
type Config struct {
	// Timeout bounds the whole request. Zero means no timeout.
	Timeout time.Duration

	// RetryAttempts is how many times a failed GET or HEAD is retried.
	RetryAttempts int

	// RetryBackoff is the first retry delay; it doubles up to MaxBackoff.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration

	UserAgent string

	// WrapTransport wraps the base transport beneath logging and retries.
	WrapTransport func(http.RoundTripper) http.RoundTripper
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 2,
		RetryBackoff:  200 * time.Millisecond,
		MaxBackoff:    5 * time.Second,
		UserAgent:     "mcpgate",
	}
}

// Validate checks the retry settings and user agent.
func (c Config) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	case c.RetryAttempts < 0:
		return fmt.Errorf("retry attempts must be >= 0, got %d", c.RetryAttempts)
	case c.RetryAttempts > 0 && c.RetryBackoff <= 0:
		return fmt.Errorf("retry backoff must be > 0 when retrying, got %v", c.RetryBackoff)
	case c.RetryAttempts > 0 && c.MaxBackoff < c.RetryBackoff:
		return fmt.Errorf("max backoff %v is below retry backoff %v", c.MaxBackoff, c.RetryBackoff)
	case c.UserAgent == "":
		return fmt.Errorf("user agent is required")
	}
	return nil
}

// New returns a client for cfg.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.WrapTransport != nil {
		rt = cfg.WrapTransport(rt)
	}
	rt = &loggingTransport{next: rt, userAgent: cfg.UserAgent}
	if cfg.RetryAttempts > 0 {
		rt = &retryTransport{next: rt, cfg: cfg}
	}
	return &http.Client{Transport: rt, Timeout: cfg.Timeout}, nil
}
