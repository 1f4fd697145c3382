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

	"github.com/zalando/go-keyring"
)

const (
	keychainService = "mcpgate"
	availabilityKey = "__mcpgate_availability__"
)

// KeychainBackend stores secrets in the OS keychain (macOS Keychain,
// Secret Service on Linux, Windows Credential Manager).
type KeychainBackend struct {
	available bool
}

// NewKeychainBackend checks the keychain once. A locked or missing
// keychain service marks the backend unavailable.
func NewKeychainBackend() *KeychainBackend {
	_, err := keyring.Get(keychainService, availabilityKey)
	return &KeychainBackend{available: err == nil || errors.Is(err, keyring.ErrNotFound)}
}

func (k *KeychainBackend) Name() string { return "keychain" }

func (k *KeychainBackend) Available() bool { return k.available }

func (k *KeychainBackend) Get(_ context.Context, key string) (string, error) {
	if !k.available {
		return "", ErrUnavailable
	}
	v, err := keyring.Get(keychainService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain read %s: %w", key, err)
	}
	return v, nil
}

func (k *KeychainBackend) Set(_ context.Context, key, value string) error {
	if !k.available {
		return ErrUnavailable
	}
	if err := keyring.Set(keychainService, key, value); err != nil {
		return fmt.Errorf("keychain write %s: %w", key, err)
	}
	return nil
}
