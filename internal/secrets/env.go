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
	"os"
	"strings"
)

const envPrefix = "MCPGATE_SECRET_"

var envKeyReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_")

// EnvVarName returns the environment variable that overrides key,
// e.g. "github/api-token" becomes MCPGATE_SECRET_GITHUB_API_TOKEN.
func EnvVarName(key string) string {
	return envPrefix + strings.ToUpper(envKeyReplacer.Replace(key))
}

// EnvBackend reads secrets from MCPGATE_SECRET_* variables.
type EnvBackend struct{}

// NewEnvBackend returns the environment backend.
func NewEnvBackend() *EnvBackend { return &EnvBackend{} }

func (*EnvBackend) Name() string { return "env" }

func (*EnvBackend) Available() bool { return true }

func (*EnvBackend) Get(_ context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(EnvVarName(key)); ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (*EnvBackend) Set(context.Context, string, string) error {
	return ErrReadOnly
}
