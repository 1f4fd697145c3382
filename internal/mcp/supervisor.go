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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/tombee/mcpgate/internal/log"
	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

const (
	// DefaultStopGracePeriod is how long Stop waits after a graceful
	// termination request before killing the process.
	DefaultStopGracePeriod = 5 * time.Second

	// ConsoleLogName is the file provider output is redirected to when a
	// working directory is resolved.
	ConsoleLogName = "console.log"

	// killWait bounds the wait for a killed process to be reaped.
	killWait = 2 * time.Second
)

// ProcessStatus is a point-in-time view of a supervised provider.
type ProcessStatus struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LogFile   string    `json:"log_file,omitempty"`
}

// processHandle tracks one launched process. done is closed once Wait
// returns; cleanup runs exactly once whichever of Stop or the monitor
// gets there first.
type processHandle struct {
	name      string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *lineWriter
	stderr    *lineWriter
	logFile   *os.File
	started   bool
	startedAt time.Time

	done        chan struct{}
	exitErr     error
	cleanupOnce sync.Once
}

func (h *processHandle) alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger

	// GracePeriod is the wait between SIGTERM and SIGKILL on Stop.
	GracePeriod time.Duration

	// ConsoleLines is the capacity of each in-memory console buffer.
	ConsoleLines int
}

// Supervisor starts, monitors and stops one OS process per STDIO provider.
type Supervisor struct {
	logger       *slog.Logger
	gracePeriod  time.Duration
	consoleLines int
	events       *statusDispatcher

	mu       sync.RWMutex
	handles  map[string]*processHandle
	consoles map[string]*ConsoleBuffer
	logFiles map[string]string
	disposed bool

	wg sync.WaitGroup
}

// NewSupervisor creates a process supervisor.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	logger := log.WithComponent(cfg.Logger, "supervisor")
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultStopGracePeriod
	}
	if cfg.ConsoleLines <= 0 {
		cfg.ConsoleLines = DefaultConsoleLines
	}

	return &Supervisor{
		logger:       logger,
		gracePeriod:  cfg.GracePeriod,
		consoleLines: cfg.ConsoleLines,
		events:       newStatusDispatcher(logger),
		handles:      make(map[string]*processHandle),
		consoles:     make(map[string]*ConsoleBuffer),
		logFiles:     make(map[string]string),
	}
}

// AddStatusListener registers a listener for running-state changes.
func (s *Supervisor) AddStatusListener(l StatusListener) {
	s.events.Subscribe(l)
}

// Start launches the provider's process. Starting a provider that is
// already running logs a warning and changes nothing.
func (s *Supervisor) Start(cfg *ProviderConfig) error {
	if cfg == nil {
		return &pkgerrors.ValidationError{Field: "config", Message: "provider config is required"}
	}
	if cfg.Transport().IsRemote() {
		return &pkgerrors.ValidationError{
			Field:   "transport",
			Message: fmt.Sprintf("server %q uses %s transport and has no local process", cfg.Name, cfg.Transport()),
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.WithServer(s.logger, cfg.Name)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return fmt.Errorf("supervisor has been disposed")
	}
	if existing, ok := s.handles[cfg.Name]; ok && existing.alive() {
		s.mu.Unlock()
		logger.Warn("MCP server is already running")
		return nil
	}
	h := &processHandle{name: cfg.Name, done: make(chan struct{})}
	s.handles[cfg.Name] = h
	s.mu.Unlock()

	if err := s.launch(h, cfg, logger); err != nil {
		close(h.done)
		s.mu.Lock()
		if s.handles[cfg.Name] == h {
			delete(s.handles, cfg.Name)
		}
		s.mu.Unlock()
		recordProcessStart(cfg.Name, err)
		logger.Error("failed to start MCP server", log.Error(err))
		return &pkgerrors.LaunchError{Server: cfg.Name, Cause: err}
	}

	s.mu.Lock()
	h.started = true
	s.mu.Unlock()

	recordProcessStart(cfg.Name, nil)
	logger.Info("MCP server started", log.PIDKey, h.cmd.Process.Pid)
	s.events.Publish(cfg.Name, true)

	s.wg.Add(1)
	go s.monitor(h, logger)

	return nil
}

// launch builds and starts the command. Output goes to console.log in the
// resolved working directory, or to the in-memory console otherwise.
func (s *Supervisor) launch(h *processHandle, cfg *ProviderConfig, logger *slog.Logger) error {
	commandDir, err := ResolveCommandDir(commandPath(cfg))
	if err != nil {
		logger.Debug("could not resolve command directory", log.Error(err))
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = MergeEnvironment(os.Environ(), commandDir, cfg.Env)
	cmd.WaitDelay = s.gracePeriod

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	workDir := s.resolveWorkingDirectory(cfg, logger)
	if workDir != "" {
		cmd.Dir = workDir
		logPath := filepath.Join(workDir, ConsoleLogName)
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			stdin.Close()
			return fmt.Errorf("open console log: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		h.logFile = f

		s.mu.Lock()
		s.logFiles[cfg.Name] = logPath
		delete(s.consoles, cfg.Name)
		s.mu.Unlock()
	} else {
		console := NewConsoleBuffer(s.consoleLines)
		h.stdout = newLineWriter(func(line string) {
			console.Add(ConsoleLine{Timestamp: time.Now(), Stream: StreamStdout, Text: line})
		})
		h.stderr = newLineWriter(func(line string) {
			console.Add(ConsoleLine{Timestamp: time.Now(), Stream: StreamStderr, Text: line})
		})
		cmd.Stdout = h.stdout
		cmd.Stderr = h.stderr

		s.mu.Lock()
		s.consoles[cfg.Name] = console
		delete(s.logFiles, cfg.Name)
		s.mu.Unlock()
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		if h.logFile != nil {
			h.logFile.Close()
		}
		return err
	}

	h.cmd = cmd
	h.stdin = stdin
	h.startedAt = time.Now()
	return nil
}

// resolveWorkingDirectory picks the explicit working directory when it
// exists, else the directory holding the installed artifact.
func (s *Supervisor) resolveWorkingDirectory(cfg *ProviderConfig, logger *slog.Logger) string {
	if cfg.WorkingDirectory != "" {
		if isDir(cfg.WorkingDirectory) {
			return cfg.WorkingDirectory
		}
		logger.Warn("working directory does not exist, ignoring", "working_directory", cfg.WorkingDirectory)
	}
	if cfg.InstallPath != "" {
		if parent := filepath.Dir(cfg.InstallPath); isDir(parent) {
			return parent
		}
	}
	return ""
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// monitor blocks until the process exits and then tears down its state.
func (s *Supervisor) monitor(h *processHandle, logger *slog.Logger) {
	defer s.wg.Done()

	err := h.cmd.Wait()

	if h.stdout != nil {
		h.stdout.Flush()
	}
	if h.stderr != nil {
		h.stderr.Flush()
	}
	if h.logFile != nil {
		h.logFile.Close()
	}
	h.exitErr = err
	close(h.done)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Info("MCP server exited")
	case errors.As(err, &exitErr):
		logger.Info("MCP server exited", "exit_code", exitErr.ExitCode())
	default:
		logger.Warn("MCP server wait failed", log.Error(err))
	}

	s.cleanup(h)
}

// cleanup clears the handle and publishes the stopped state, once per handle.
func (s *Supervisor) cleanup(h *processHandle) {
	h.cleanupOnce.Do(func() {
		s.mu.Lock()
		if s.handles[h.name] == h {
			delete(s.handles, h.name)
		}
		s.mu.Unlock()

		recordProcessExit(h.name)
		s.events.Publish(h.name, false)
	})
}

// Stop terminates the provider's process: SIGTERM, then SIGKILL after the
// grace period or when ctx is done. Stopping a provider that is not
// running still notifies listeners.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	logger := log.WithServer(s.logger, name)

	s.mu.RLock()
	h, ok := s.handles[name]
	started := ok && h.started
	s.mu.RUnlock()

	if !started || !h.alive() {
		logger.Warn("MCP server is not running")
		s.events.Publish(name, false)
		return nil
	}

	defer s.cleanup(h)

	h.stdin.Close()
	if err := terminate(h.cmd.Process); err != nil {
		logger.Debug("graceful termination failed", log.Error(err))
	}

	timer := time.NewTimer(s.gracePeriod)
	defer timer.Stop()

	select {
	case <-h.done:
		logger.Info("MCP server stopped")
		return nil
	case <-timer.C:
		logger.Warn("MCP server did not exit within grace period, killing",
			"grace_period", s.gracePeriod)
	case <-ctx.Done():
		logger.Warn("stop interrupted, killing MCP server", log.Error(ctx.Err()))
	}

	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Error("failed to kill MCP server", log.Error(err))
	}

	select {
	case <-h.done:
	case <-time.After(killWait):
		logger.Warn("MCP server was not reaped after kill")
	}
	return nil
}

func terminate(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}

// IsRunning reports whether a handle exists and its process is alive.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.RLock()
	h, ok := s.handles[name]
	started := ok && h.started
	s.mu.RUnlock()
	return started && h.alive()
}

// Status returns the state of one provider.
func (s *Supervisor) Status(name string) ProcessStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := ProcessStatus{Name: name, LogFile: s.logFiles[name]}
	if h, ok := s.handles[name]; ok && h.started && h.alive() {
		status.Running = true
		status.PID = h.cmd.Process.Pid
		status.StartedAt = h.startedAt
	}
	return status
}

// Running returns the names of running providers, sorted.
func (s *Supervisor) Running() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.handles))
	for name, h := range s.handles {
		if h.started && h.alive() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ConsoleOutput returns the captured output of the provider's latest run.
// When output was redirected to console.log it reads that file instead.
func (s *Supervisor) ConsoleOutput(name string) (string, error) {
	s.mu.RLock()
	console := s.consoles[name]
	logPath := s.logFiles[name]
	s.mu.RUnlock()

	switch {
	case console != nil:
		return console.String(), nil
	case logPath != "":
		data, err := os.ReadFile(logPath)
		if err != nil {
			return "", fmt.Errorf("read console log: %w", err)
		}
		return string(data), nil
	}
	return "", ErrServerNotFound(name)
}

// LogFile returns the console.log path of the provider's latest run, or
// "" when output was captured in memory.
func (s *Supervisor) LogFile(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logFiles[name]
}

// DisposeAll kills every tracked process and drops all listeners. It is
// safe to call when some or all providers have already stopped.
func (s *Supervisor) DisposeAll() {
	s.mu.Lock()
	s.disposed = true
	handles := make([]*processHandle, 0, len(s.handles))
	for _, h := range s.handles {
		if h.started {
			handles = append(handles, h)
		}
	}
	s.mu.Unlock()

	s.events.Close()

	for _, h := range handles {
		if !h.alive() {
			continue
		}
		h.stdin.Close()
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("failed to kill MCP server", log.ServerKey, h.name, log.Error(err))
		}
	}

	s.wg.Wait()
}
