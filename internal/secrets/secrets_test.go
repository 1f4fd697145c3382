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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestEnvVarName(t *testing.T) {
	tests := map[string]string{
		"github/token":     "MCPGATE_SECRET_GITHUB_TOKEN",
		"github/api-token": "MCPGATE_SECRET_GITHUB_API_TOKEN",
		"wx.key":           "MCPGATE_SECRET_WX_KEY",
	}
	for key, want := range tests {
		t.Run(key, func(t *testing.T) {
			assert.Equal(t, want, EnvVarName(key))
		})
	}
}

func TestReference(t *testing.T) {
	ref := Reference("github/token")
	assert.Equal(t, "keyring:github/token", ref)
	assert.True(t, IsReference(ref))
	assert.False(t, IsReference("plain"))
}

func TestResolver_EnvOverridesKeychain(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	kc := NewKeychainBackend()
	require.True(t, kc.Available())

	r := NewResolver(NewEnvBackend(), kc)
	require.NoError(t, r.Set(ctx, "wx/API_KEY", "from-keychain", ""))

	v, err := r.Get(ctx, "wx/API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-keychain", v)

	t.Setenv(EnvVarName("wx/API_KEY"), "from-env")
	v, err = r.Get(ctx, "wx/API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestResolver_Set(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	r := NewResolver(NewEnvBackend(), NewKeychainBackend())

	tests := []struct {
		name    string
		backend string
		wantErr error
	}{
		{name: "keychain", backend: "keychain"},
		{name: "first writable", backend: ""},
		{name: "read-only env", backend: "env", wantErr: ErrReadOnly},
		{name: "unknown", backend: "vault", wantErr: ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Set(ctx, "k", "v", tt.backend)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResolver_ExpandMap(t *testing.T) {
	ctx := context.Background()
	t.Setenv(EnvVarName("github/token"), "ghp_x")
	r := NewResolver(NewEnvBackend())

	in := map[string]string{"TOKEN": Reference("github/token"), "MODE": "fast"}
	out, err := r.ExpandMap(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TOKEN": "ghp_x", "MODE": "fast"}, out)
	assert.Equal(t, Reference("github/token"), in["TOKEN"])

	_, err = r.ExpandMap(ctx, map[string]string{"X": Reference("missing/key")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "MCPGATE_SECRET_MISSING_KEY")

	out, err = r.ExpandMap(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
