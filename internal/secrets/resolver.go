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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolver queries backends in the order given.
type Resolver struct {
	backends []Backend
}

// NewResolver returns a resolver over backends. Earlier backends win, so
// pass the env backend first to let variables override the keychain.
func NewResolver(backends ...Backend) *Resolver {
	return &Resolver{backends: backends}
}

// Get returns the first value found for key.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	for _, b := range r.backends {
		if !b.Available() {
			continue
		}
		v, err := b.Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s (set %s)", ErrNotFound, key, EnvVarName(key))
}

// Set writes key to the named backend, or to the first writable one when
// backendName is empty.
func (r *Resolver) Set(ctx context.Context, key, value, backendName string) error {
	for _, b := range r.backends {
		if backendName != "" && b.Name() != backendName {
			continue
		}
		if !b.Available() {
			if backendName != "" {
				return fmt.Errorf("%w: %s", ErrUnavailable, backendName)
			}
			continue
		}
		err := b.Set(ctx, key, value)
		if backendName == "" && errors.Is(err, ErrReadOnly) {
			continue
		}
		return err
	}
	if backendName != "" {
		return fmt.Errorf("%w: unknown backend %q", ErrUnavailable, backendName)
	}
	return ErrUnavailable
}

// Expand resolves value when it is a reference and returns it unchanged
// otherwise.
func (r *Resolver) Expand(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	return r.Get(ctx, strings.TrimPrefix(value, ReferencePrefix))
}

// ExpandMap returns a copy of values with every reference resolved.
func (r *Resolver) ExpandMap(ctx context.Context, values map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		expanded, err := r.Expand(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = expanded
	}
	return out, nil
}
