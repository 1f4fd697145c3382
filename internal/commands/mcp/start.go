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
	"net"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
	"github.com/tombee/mcpgate/internal/log"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
	"github.com/tombee/mcpgate/internal/tracing"
)

func newStartCommand() *cobra.Command {
	var metricsAddr string
	var tail int

	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Run a STDIO server in the foreground",
		Long: `Start a STDIO MCP server and keep it running until it exits or you
press Ctrl-C. The server's output is written to console.log in its working
directory, or kept in memory and printed when the server stops. Removing
or disabling the server in mcp.json while it runs stops it.

With --metrics-addr, Prometheus metrics are served at /metrics while the
server runs.`,
		Example: `  mcpgate mcp start filesystem
  mcpgate mcp start filesystem --metrics-addr 127.0.0.1:9464`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = e.settings.Config().Telemetry.MetricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStart(ctx, e, args[0], metricsAddr, tail)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().IntVar(&tail, "tail", 20, "Console lines to print when the server stops")
	return cmd
}

func runStart(ctx context.Context, e *env, name, metricsAddr string, tail int) error {
	cfg, _, err := e.provider(name)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return mcpgw.ErrServerDisabled(name)
	}

	provider, err := tracing.New(ctx, tracing.FromTelemetry(e.settings.Config().Telemetry, version()))
	if err != nil {
		e.logger.Warn("tracing disabled", log.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	}

	if metricsAddr != "" {
		srv, err := serveMetrics(metricsAddr)
		if err != nil {
			return err
		}
		defer srv.Close()
		e.logger.Info("serving metrics", "addr", metricsAddr)
	}

	sup := mcpgw.NewSupervisor(mcpgw.SupervisorConfig{Logger: e.logger})
	defer sup.DisposeAll()

	exited := make(chan struct{})
	var exitOnce sync.Once
	sup.AddStatusListener(func(server string, running bool) {
		if server != name {
			return
		}
		if running {
			if !shared.GetQuiet() {
				fmt.Fprintln(os.Stderr, shared.RenderOK(fmt.Sprintf("%s started (pid %d)", server, sup.Status(server).PID)))
			}
			return
		}
		exitOnce.Do(func() { close(exited) })
	})

	if err := sup.Start(cfg); err != nil {
		return err
	}

	changes, unwatch := watchProvider(e, name)
	defer unwatch()
	stopServer := func(reason string) {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx, name); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn("failed to stop server", log.ServerKey, name, log.Error(err))
		}
		fmt.Fprintln(os.Stderr, shared.RenderOK(name+" stopped"+reason))
	}

wait:
	for {
		select {
		case <-exited:
			fmt.Fprintln(os.Stderr, shared.RenderWarn(name+" exited"))
			break wait
		case <-ctx.Done():
			stopServer("")
			break wait
		case next := <-changes:
			if next == nil || !next.Enabled {
				stopServer(" (removed or disabled in mcp.json)")
				break wait
			}
			if !reflect.DeepEqual(cfg, next) {
				fmt.Fprintln(os.Stderr, shared.RenderWarn(name+" definition changed in mcp.json; restart to apply"))
				cfg = next
			}
		}
	}

	if logFile := sup.LogFile(name); logFile != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", shared.RenderLabel("Console log:"), logFile)
		return nil
	}
	if output, err := sup.ConsoleOutput(name); err == nil && output != "" && tail > 0 {
		lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
		if len(lines) > tail {
			lines = lines[len(lines)-tail:]
		}
		fmt.Fprintln(os.Stderr, shared.Header.Render("Console output"))
		for _, l := range lines {
			fmt.Fprintln(os.Stderr, "  "+l)
		}
	}
	return nil
}

// watchProvider reports every reload of name's entry, nil once it is
// removed. Only the latest entry is kept when the reader falls behind.
func watchProvider(e *env, name string) (<-chan *mcpgw.ProviderConfig, func()) {
	changes := make(chan *mcpgw.ProviderConfig, 1)
	w, err := mcpgw.NewWatcher(mcpgw.WatcherConfig{Store: e.store, Logger: e.logger})
	if err != nil {
		e.logger.Debug("not watching provider config", log.Error(err))
		return changes, func() {}
	}
	w.Subscribe(func(providers map[string]*mcpgw.ProviderConfig) {
		next := providers[name]
		for {
			select {
			case changes <- next:
				return
			default:
				select {
				case <-changes:
				default:
				}
			}
		}
	})
	return changes, func() { _ = w.Close() }
}

func serveMetrics(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", tracing.MetricsHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return srv, nil
}
