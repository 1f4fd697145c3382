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

package mcp

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ErrEmptyCommand is returned by CreateCommand for an empty argv.
var ErrEmptyCommand = errors.New("command must not be empty")

// CreateCommand wraps argv in the platform shell so that PATH lookups,
// shims and shell init behave as they do in a terminal.
//
// On POSIX the result is ["/bin/bash", "-c", joined]; on Windows it is
// ["cmd.exe", "/c", joined]. Empty arguments are dropped and arguments
// containing whitespace are double-quoted.
func CreateCommand(argv []string) ([]string, error) {
	return createCommand(runtime.GOOS, argv)
}

func createCommand(goos string, argv []string) ([]string, error) {
	parts := make([]string, 0, len(argv))
	for _, arg := range argv {
		if arg == "" {
			continue
		}
		if strings.ContainsAny(arg, " \t\n") {
			arg = `"` + arg + `"`
		}
		parts = append(parts, arg)
	}
	if len(parts) == 0 {
		return nil, ErrEmptyCommand
	}

	joined := strings.Join(parts, " ")
	if goos == "windows" {
		return []string{"cmd.exe", "/c", joined}, nil
	}
	return []string{"/bin/bash", "-c", joined}, nil
}

// ResolveCommandDir returns the directory containing command. Bare names
// are looked up on PATH; paths must name an existing executable.
func ResolveCommandDir(command string) (string, error) {
	if command == "" {
		return "", ErrEmptyCommand
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", ErrCommandNotFound(command).WithCause(err)
	}
	return filepath.Dir(path), nil
}

// commandPath returns the provider's command with a relative path joined
// to its working directory, which is where the shell will run it.
func commandPath(p *ProviderConfig) string {
	command := p.Command
	if filepath.IsAbs(command) || p.WorkingDirectory == "" {
		return command
	}
	if strings.ContainsRune(command, '/') || strings.ContainsRune(command, filepath.Separator) {
		return filepath.Join(p.WorkingDirectory, command)
	}
	return command
}

// MergeEnvironment builds a child process environment: base (usually
// os.Environ()), then commandDir prepended to PATH, then overlay. Overlay
// values win on conflicts.
func MergeEnvironment(base []string, commandDir string, overlay map[string]string) []string {
	return mergeEnvironment(runtime.GOOS, base, commandDir, overlay)
}

func mergeEnvironment(goos string, base []string, commandDir string, overlay map[string]string) []string {
	var order []string
	values := make(map[string]string, len(base)+len(overlay))

	set := func(key, value string) {
		if _, exists := values[key]; !exists {
			order = append(order, key)
		}
		values[key] = value
	}

	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		set(key, value)
	}

	if commandDir != "" {
		pathKey := "PATH"
		if goos == "windows" {
			for _, key := range order {
				if strings.EqualFold(key, "PATH") {
					pathKey = key
					break
				}
			}
		}
		if current := values[pathKey]; current != "" {
			set(pathKey, commandDir+string(os.PathListSeparator)+current)
		} else {
			set(pathKey, commandDir)
		}
	}

	overlayKeys := make([]string, 0, len(overlay))
	for key := range overlay {
		overlayKeys = append(overlayKeys, key)
	}
	sort.Strings(overlayKeys)
	for _, key := range overlayKeys {
		set(key, overlay[key])
	}

	env := make([]string, 0, len(order))
	for _, key := range order {
		env = append(env, key+"="+values[key])
	}
	return env
}

// LookupEnv returns the value of key in an environment list.
func LookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}
