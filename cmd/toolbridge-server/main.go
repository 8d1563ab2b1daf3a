// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// toolbridge-server exposes the calculator tools over the toolbridge
// JSON-RPC protocol.
//
// Usage:
//
//	toolbridge-server --host 127.0.0.1 --port 8000
//
// Clients open GET /sse, learn their request endpoint from the first
// "endpoint" event and POST requests there. POST /mcp answers in the HTTP
// body instead.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/teradata-labs/toolbridge/internal/log"
	"github.com/teradata-labs/toolbridge/internal/version"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "toolbridge-server",
		Short: "Serve calculator tools over JSON-RPC",
		Long: heredoc.Doc(`
			toolbridge-server exposes a fixed set of calculator tools
			(add, subtract, multiply, divide) to tool-using agents.

			Each connection negotiates a session with "initialize" and may then
			list and execute tools. The server keeps no state across restarts.
		`),
		Example: heredoc.Doc(`
			# Listen on the default address (127.0.0.1:8000)
			toolbridge-server

			# Expire idle sessions after five minutes, log JSON
			toolbridge-server --session-ttl 5m --log-format json
		`),
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./toolbridge.yaml or $HOME/.toolbridge/toolbridge.yaml)")
	flags.String("host", "127.0.0.1", "listen host")
	flags.Int("port", 8000, "listen port")
	flags.Duration("session-ttl", 30*time.Minute, "close sessions idle longer than this (0 disables)")
	flags.Duration("handler-timeout", 30*time.Second, "maximum time a tool handler may run")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-file", "", "write logs to this file instead of stderr")

	_ = v.BindPFlag("server.host", flags.Lookup("host"))
	_ = v.BindPFlag("server.port", flags.Lookup("port"))
	_ = v.BindPFlag("session.ttl", flags.Lookup("session-ttl"))
	_ = v.BindPFlag("dispatch.handler_timeout", flags.Lookup("handler-timeout"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("logging.file", flags.Lookup("log-file"))

	return cmd
}

func serve(ctx context.Context, cfg *Config) error {
	logger, err := log.Build(cfg.Logging)
	if err != nil {
		return err
	}
	log.SetLogger(logger)
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	transport.WarnIfNotLocalhost(logger, addr)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.start()
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Info("tool server listening",
		zap.String("addr", addr),
		zap.String("version", version.Get()),
		zap.Int("tools", a.tools),
		zap.String("sse_path", cfg.Server.SSEPath),
		zap.String("messages_path", cfg.Server.MessagesPath),
		zap.String("direct_path", cfg.Server.DirectPath),
		zap.Duration("session_ttl", cfg.Session.TTL))

	select {
	case err := <-errCh:
		a.close(context.Background())
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.close(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	logger.Info("server stopped gracefully")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
