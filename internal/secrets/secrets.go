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

// Package secrets keeps credentials for MCP servers out of mcp.json.
//
// Registry-declared secret headers and environment variables are written to
// the OS keychain and the provider entry stores a reference instead:
//
//	"headers": {"Authorization": "keyring:github/authorization"}
//
// References are expanded by the client factory right before a server is
// launched. Any key can be overridden with MCPGATE_SECRET_<KEY>.
package secrets

import (
	"context"
	"errors"
	"strings"
)

// ReferencePrefix marks a config value as a secret reference.
const ReferencePrefix = "keyring:"

var (
	// ErrNotFound is returned when no backend holds the key.
	ErrNotFound = errors.New("secret not found")

	// ErrUnavailable is returned when the requested backend cannot be used.
	ErrUnavailable = errors.New("secret backend unavailable")

	// ErrReadOnly is returned when writing to a backend that only reads.
	ErrReadOnly = errors.New("secret backend is read-only")
)

// Backend is one place secrets can live.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Available() bool
}

// Reference returns the config value that points at key.
func Reference(key string) string {
	return ReferencePrefix + key
}

// IsReference reports whether value is a secret reference.
func IsReference(value string) bool {
	return strings.HasPrefix(value, ReferencePrefix)
}
