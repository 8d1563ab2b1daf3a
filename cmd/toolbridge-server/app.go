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
package main

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/internal/version"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
	"github.com/teradata-labs/toolbridge/pkg/tools/calculator"
	"go.uber.org/zap"
)

// app wires the registry, dispatcher and transports behind one handler.
type app struct {
	handler  http.Handler
	sessions *session.Manager
	sse      *transport.SSEServer
	direct   *transport.DirectServer // nil when the direct endpoint is off
	sweeper  *session.Sweeper // nil when idle expiry is disabled
	tools    int
	logger   *zap.Logger
}

func newApp(cfg *Config, logger *zap.Logger) (*app, error) {
	reg := registry.New(logger.Named("registry"))
	if err := calculator.Register(reg, logger.Named("calculator")); err != nil {
		return nil, errors.Wrap(err, "register calculator tools")
	}
	reg.Seal()

	sessions := session.NewManager(session.Config{
		Capabilities: protocol.Capabilities{Tools: true},
		TTL:          cfg.Session.TTL,
		Logger:       logger.Named("session"),
	})

	dispatcher, err := server.NewServer(server.Config{
		Version:        version.Get(),
		Tools:          reg,
		Sessions:       sessions,
		HandlerTimeout: cfg.Dispatch.HandlerTimeout,
		Logger:         logger.Named("dispatch"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create dispatcher")
	}

	sse, err := transport.NewSSEServer(transport.SSEServerConfig{
		Server:       dispatcher,
		MessagesPath: cfg.Server.MessagesPath,
		QueueSize:    cfg.Session.QueueSize,
		Logger:       logger.Named("sse"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create SSE transport")
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.SSEPath, sse.StreamHandler())
	mux.Handle(cfg.Server.MessagesPath, sse.MessagesHandler())
	var direct *transport.DirectServer
	if cfg.Server.DirectPath != "" {
		direct, err = transport.NewDirectServer(transport.DirectServerConfig{
			Server:    dispatcher,
			QueueSize: cfg.Session.QueueSize,
			Logger:    logger.Named("direct"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "create direct transport")
		}
		mux.Handle(cfg.Server.DirectPath, direct)
	}

	a := &app{
		handler:  mux,
		sessions: sessions,
		sse:      sse,
		direct:   direct,
		tools:    reg.Len(),
		logger:   logger,
	}
	if cfg.Session.TTL > 0 {
		a.sweeper, err = session.NewSweeper(sessions, cfg.Session.SweepSchedule, logger.Named("sweeper"))
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) start() {
	if a.sweeper != nil {
		a.sweeper.Start()
	}
}

// close drops every stream and session. Streams have to go before
// http.Server.Shutdown, which otherwise waits on them forever.
func (a *app) close(ctx context.Context) {
	a.sse.Close()
	if a.direct != nil {
		a.direct.Close()
	}
	a.sessions.CloseAll(session.ReasonShutdown)
	if a.sweeper != nil {
		if err := a.sweeper.Stop(ctx); err != nil {
			a.logger.Warn("session sweeper did not stop cleanly", zap.Error(err))
		}
	}
}
