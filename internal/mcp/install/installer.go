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

// Package install builds MCP providers from source repositories and turns
// them into provider configs.
package install

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/mcpgate/internal/config"
	"github.com/tombee/mcpgate/internal/log"
	"github.com/tombee/mcpgate/internal/mcp"
	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

// DefaultCommandTimeout bounds each git or build command.
const DefaultCommandTimeout = 30 * time.Minute

// Runner executes an external command in dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, dir, name string, args ...string) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, dir, name string, args ...string) error {
	return f(ctx, dir, name, args...)
}

// Config configures an Installer.
type Config struct {
	// BaseDir holds one directory per installed repository. Defaults to
	// the mcpgate data directory.
	BaseDir string

	// CommandTimeout bounds each command. Defaults to DefaultCommandTimeout.
	CommandTimeout time.Duration

	// Runner executes commands. Defaults to running them with os/exec.
	Runner Runner

	// LookPath finds executables. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)

	// GOOS selects platform-specific wrapper names. Defaults to runtime.GOOS.
	GOOS string

	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger
}

// Installer clones, builds and registers Java MCP providers.
type Installer struct {
	baseDir  string
	timeout  time.Duration
	runner   Runner
	lookPath func(string) (string, error)
	goos     string
	logger   *slog.Logger
}

// New creates an installer.
func New(cfg Config) (*Installer, error) {
	if cfg.BaseDir == "" {
		dir, err := config.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve install directory: %w", err)
		}
		cfg.BaseDir = dir
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}

	logger := log.WithComponent(cfg.Logger, "installer")
	if cfg.Runner == nil {
		cfg.Runner = &execRunner{logger: logger}
	}

	return &Installer{
		baseDir:  cfg.BaseDir,
		timeout:  cfg.CommandTimeout,
		runner:   cfg.Runner,
		lookPath: cfg.LookPath,
		goos:     cfg.GOOS,
		logger:   logger,
	}, nil
}

// BaseDir returns the install root.
func (i *Installer) BaseDir() string {
	return i.baseDir
}

// Install clones repoURL into <BaseDir>/<repo>, builds it with Maven or
// Gradle, copies the largest built jar to <repo>.jar and returns a stdio
// provider that runs it. On failure the install directory is removed and
// an InstallError is returned.
func (i *Installer) Install(ctx context.Context, repoURL string) (*mcp.ProviderConfig, error) {
	name, err := RepositoryName(repoURL)
	if err != nil {
		return nil, &pkgerrors.InstallError{Repository: repoURL, Step: "parse url", Cause: err}
	}

	installDir := filepath.Join(i.baseDir, name)
	if _, err := os.Stat(installDir); err == nil {
		return nil, &pkgerrors.InstallError{
			Repository: name,
			Step:       "prepare",
			Cause:      fmt.Errorf("%s already exists", installDir),
		}
	}
	if err := os.MkdirAll(i.baseDir, 0755); err != nil {
		return nil, &pkgerrors.InstallError{Repository: name, Step: "prepare", Cause: err}
	}

	logger := i.logger.With("repository", name)
	logger.Info("installing MCP server", "url", repoURL, "dir", installDir)

	cfg, step, err := i.install(ctx, repoURL, name, installDir)
	if err != nil {
		if rmErr := os.RemoveAll(installDir); rmErr != nil {
			logger.Error("failed to clean up install directory", "dir", installDir, log.Error(rmErr))
		}
		logger.Error("installation failed", "step", step, log.Error(err))
		return nil, &pkgerrors.InstallError{Repository: name, Step: step, Cause: err}
	}

	logger.Info("MCP server installed", "jar", cfg.InstallPath)
	return cfg, nil
}

// install performs the steps and reports which one failed.
func (i *Installer) install(ctx context.Context, repoURL, name, installDir string) (*mcp.ProviderConfig, string, error) {
	if err := i.run(ctx, i.baseDir, "git", "clone", "--depth", "1", repoURL, name); err != nil {
		return nil, "clone", err
	}

	jarDir, err := i.build(ctx, installDir)
	if err != nil {
		return nil, "build", err
	}

	jar, err := FindLargestJar(jarDir)
	if err != nil {
		return nil, "locate jar", err
	}

	finalJar := filepath.Join(installDir, name+".jar")
	if err := copyFile(jar, finalJar); err != nil {
		return nil, "copy jar", err
	}

	cfg := mcp.NewStdioConfig(name, "java", "-jar", filepath.Base(finalJar))
	cfg.WorkingDirectory = installDir
	cfg.InstallPath = finalJar
	cfg.RepositoryURL = repoURL
	cfg.RepositoryName = name
	return cfg, "", nil
}

// build detects the build system, runs it and returns the directory that
// holds the built jars.
func (i *Installer) build(ctx context.Context, dir string) (string, error) {
	switch {
	case exists(filepath.Join(dir, "pom.xml")):
		if _, err := i.lookPath("mvn"); err != nil {
			return "", fmt.Errorf("maven (mvn) not found in PATH: %w", err)
		}
		if err := i.run(ctx, dir, "mvn", "clean", "install", "-DskipTests"); err != nil {
			return "", err
		}
		return filepath.Join(dir, "target"), nil

	case exists(filepath.Join(dir, "build.gradle")) || exists(filepath.Join(dir, "build.gradle.kts")):
		wrapper := "gradlew"
		if i.goos == "windows" {
			wrapper = "gradlew.bat"
		}
		gradle := filepath.Join(dir, wrapper)
		if !exists(gradle) {
			if _, err := i.lookPath("gradle"); err != nil {
				return "", fmt.Errorf("neither %s nor gradle in PATH found: %w", wrapper, err)
			}
			gradle = "gradle"
		}
		if err := i.run(ctx, dir, gradle, "build", "-x", "test"); err != nil {
			return "", err
		}
		return filepath.Join(dir, "build", "libs"), nil
	}
	return "", errors.New("no supported build system (Maven or Gradle) detected")
}

func (i *Installer) run(ctx context.Context, dir, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	i.logger.Debug("running command", "dir", dir, "command", name, "args", args)
	if err := i.runner.Run(ctx, dir, name, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &pkgerrors.TimeoutError{Operation: name, Duration: i.timeout, Cause: err}
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// Uninstall removes the provider's install directory.
func (i *Installer) Uninstall(cfg *mcp.ProviderConfig) error {
	if cfg == nil || cfg.InstallPath == "" {
		return &pkgerrors.ValidationError{Field: "installPath", Message: "server was not installed locally"}
	}

	dir := filepath.Dir(cfg.InstallPath)
	if cfg.WorkingDirectory != "" {
		dir = cfg.WorkingDirectory
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	base, err := filepath.Abs(i.baseDir)
	if err != nil {
		return err
	}
	if rel, err := filepath.Rel(base, abs); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return &pkgerrors.ValidationError{
			Field:   "installPath",
			Message: fmt.Sprintf("%s is outside %s", abs, base),
		}
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("failed to remove %s: %w", abs, err)
	}
	i.logger.Info("MCP server uninstalled", "repository", cfg.Name, "dir", abs)
	return nil
}

// RepositoryName extracts the repository name from a clone or browse URL,
// e.g. "https://github.com/acme/weather-mcp.git" -> "weather-mcp".
func RepositoryName(repoURL string) (string, error) {
	trimmed := strings.TrimSpace(repoURL)
	if trimmed == "" {
		return "", errors.New("repository URL is empty")
	}

	p := trimmed
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		p = u.Path
	} else if idx := strings.LastIndex(trimmed, ":"); idx >= 0 {
		// scp-style: git@github.com:acme/weather-mcp.git
		p = trimmed[idx+1:]
	}

	name := strings.TrimSuffix(path.Base(strings.TrimRight(p, "/")), ".git")
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("cannot derive a repository name from %q", repoURL)
	}
	return name, nil
}

// FindLargestJar returns the largest jar under dir, ignoring sources and
// javadoc jars.
func FindLargestJar(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("build output directory %s not found", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.jar")
	if err != nil {
		return "", err
	}
	sort.Strings(matches)

	var best string
	var bestSize int64 = -1
	for _, m := range matches {
		base := path.Base(m)
		if strings.Contains(base, "sources") || strings.Contains(base, "javadoc") {
			continue
		}
		fi, err := os.Stat(filepath.Join(dir, filepath.FromSlash(m)))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if fi.Size() > bestSize {
			best, bestSize = m, fi.Size()
		}
	}

	if best == "" {
		return "", fmt.Errorf("no runnable jar found in %s", dir)
	}
	return filepath.Join(dir, filepath.FromSlash(best)), nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// execRunner runs commands with os/exec and logs their combined output at
// trace level.
type execRunner struct {
	logger *slog.Logger
}

func (r *execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = 5 * time.Second

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			log.Trace(r.logger, "build output", slog.String("command", name), slog.String("line", scanner.Text()))
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	err := cmd.Run()
	pw.Close()
	<-done
	return err
}
