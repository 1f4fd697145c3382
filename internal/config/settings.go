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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrLockTimeout is returned when another mcpgate process holds the
// settings lock for longer than lockTimeout.
var ErrLockTimeout = errors.New("configuration locked by another process")

const (
	lockTimeout  = 5 * time.Second
	lockInterval = 100 * time.Millisecond
)

// settingsFile is settings.yaml guarded by an advisory flock on a sibling
// .lock file.
type settingsFile struct {
	path string
}

func (f settingsFile) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	lock, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lock.Close()

	deadline := time.Now().Add(lockTimeout)
	for syscall.Flock(int(lock.Fd()), syscall.LOCK_EX|syscall.LOCK_NB) != nil {
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		time.Sleep(lockInterval)
	}
	defer syscall.Flock(int(lock.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// read returns the stored settings with defaults filled in. Environment
// overrides are applied only when withEnv is set so they never get
// written back to disk.
func (f settingsFile) read(withEnv bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
		}
		cfg.applyDefaults()
	}
	if withEnv {
		cfg.loadFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// write replaces the file atomically.
func (f settingsFile) write(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Store is the in-process view of settings.yaml. It answers the gateway's
// settings queries and persists the flags the CLI is allowed to change.
type Store struct {
	mu   sync.RWMutex
	file *settingsFile
	cfg  *Config
}

// OpenStore loads settings from path, or from settings.yaml in ConfigDir
// when path is empty. A missing file yields the defaults.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate settings: %w", err)
		}
		path = filepath.Join(dir, "settings.yaml")
	}

	file := &settingsFile{path: path}
	var cfg *Config
	err := file.withLock(func() error {
		var err error
		cfg, err = file.read(true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Store{file: file, cfg: cfg}, nil
}

// NewStore wraps an in-memory configuration. Changes are not persisted.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg}
}

// Path returns the backing file, empty for in-memory stores.
func (s *Store) Path() string {
	if s.file == nil {
		return ""
	}
	return s.file.path
}

// Config returns a copy of the current settings.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

func (s *Store) MCPEnabled() bool { return s.Config().MCPEnabled }

func (s *Store) ApprovalRequired() bool { return s.Config().Approval.Required }

func (s *Store) DebugLogs() bool { return s.Config().DebugLogs }

// ApprovalTimeout returns how long the approval gate waits for a decision.
func (s *Store) ApprovalTimeout() time.Duration {
	cfg := s.Config()
	return cfg.ApprovalTimeout()
}

// ToolTimeout returns the per-call tool timeout.
func (s *Store) ToolTimeout() time.Duration {
	cfg := s.Config()
	return cfg.ToolTimeout()
}

// SetMCPEnabled switches the gateway on or off and persists the change.
func (s *Store) SetMCPEnabled(enabled bool) error {
	return s.update(func(cfg *Config) { cfg.MCPEnabled = enabled })
}

// SetApprovalRequired updates and persists the approval flag.
func (s *Store) SetApprovalRequired(required bool) error {
	return s.update(func(cfg *Config) { cfg.Approval.Required = required })
}

// ProvidersPath returns the mcp.json location, honouring providers_file.
func (s *Store) ProvidersPath() (string, error) {
	if override := s.Config().ProvidersFile; override != "" {
		return override, nil
	}
	return ProvidersPath()
}

// update re-reads the file under the lock before applying fn, so two
// processes changing different flags both keep their change.
func (s *Store) update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		fn(s.cfg)
		return nil
	}

	return s.file.withLock(func() error {
		stored, err := s.file.read(false)
		if err != nil {
			return err
		}
		fn(stored)
		if err := s.file.write(stored); err != nil {
			return err
		}
		fn(s.cfg)
		return nil
	})
}
