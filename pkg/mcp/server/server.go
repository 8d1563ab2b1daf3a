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
package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"go.uber.org/zap"
)

// Default server identity reported by initialize.
const (
	DefaultName    = "MCP Calculator Server"
	DefaultVersion = "1.0.0"
)

// DefaultHandlerTimeout bounds a single method handler.
const DefaultHandlerTimeout = 30 * time.Second

// MethodHandler processes a JSON-RPC method call for a peer. params is the
// raw JSON params from the request.
type MethodHandler func(ctx context.Context, peer *Peer, params json.RawMessage) (interface{}, error)

type route struct {
	handler      MethodHandler
	needsSession bool
}

// Config configures a Server.
type Config struct {
	Name    string
	Version string

	Tools    ToolProvider
	Sessions *session.Manager

	// HandlerTimeout bounds each handler; a handler still running when it
	// elapses yields a HandlerError. Zero selects DefaultHandlerTimeout and
	// a negative value disables the bound.
	HandlerTimeout time.Duration

	Logger *zap.Logger
}

// Server dispatches JSON-RPC requests. It holds no per-connection state;
// that lives in the Peer passed with every message.
type Server struct {
	info           protocol.Implementation
	tools          ToolProvider
	sessions       *session.Manager
	routes         map[string]route
	handlerTimeout time.Duration
	logger         *zap.Logger
}

// NewServer creates a dispatcher over the given tool provider and session
// manager.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Tools == nil {
		return nil, errors.New("tool provider is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.HandlerTimeout == 0 {
		cfg.HandlerTimeout = DefaultHandlerTimeout
	}

	s := &Server{
		info:           protocol.Implementation{Name: cfg.Name, Version: cfg.Version},
		tools:          cfg.Tools,
		sessions:       cfg.Sessions,
		routes:         make(map[string]route),
		handlerTimeout: cfg.HandlerTimeout,
		logger:         cfg.Logger,
	}

	s.routes[protocol.MethodInitialize] = route{handler: s.handleInitialize}
	s.routes[protocol.MethodInitialized] = route{handler: s.handleInitialized}
	s.routes[protocol.MethodPing] = route{handler: s.handlePing}
	s.routes[protocol.MethodToolsList] = route{handler: s.handleToolsList, needsSession: true}
	s.routes[protocol.MethodToolExecute] = route{handler: s.handleToolExecute, needsSession: true}

	return s, nil
}

// Info returns the server identity.
func (s *Server) Info() protocol.Implementation {
	return s.info
}

// Sessions returns the session manager the server dispatches against.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// HandleMessage processes a single JSON-RPC message from peer and returns
// the encoded response. For notifications it returns nil.
func (s *Server) HandleMessage(ctx context.Context, peer *Peer, msg []byte) ([]byte, error) {
	resp := s.Handle(ctx, peer, msg)
	if resp == nil {
		return nil, nil
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrap(err, "marshal response")
	}
	return out, nil
}

// Handle is HandleMessage without the final encoding step.
func (s *Server) Handle(ctx context.Context, peer *Peer, msg []byte) *protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.NewErrorResponse(nil, protocol.NewKindError(protocol.KindParseError, "invalid JSON"))
	}

	if err := protocol.ValidateRequest(&req); err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.NewKindError(protocol.KindInvalidRequest, err.Error()))
	}

	logger := s.logger.With(zap.String("method", req.Method), zap.Stringer("id", req.ID))
	if sid := peer.SessionID(); sid != "" {
		logger = logger.With(zap.String("session_id", sid))
	}
	logger.Debug("handling request")
	start := time.Now()

	rt, ok := s.routes[req.Method]
	if !ok {
		if req.IsNotification() {
			// Unknown notifications are ignored.
			return nil
		}
		return protocol.NewErrorResponse(req.ID,
			protocol.NewKindErrorf(protocol.KindUnknownMethod, "method not found: %s", req.Method))
	}

	if rt.needsSession {
		if err := s.checkSession(ctx, peer); err != nil {
			logger.Debug("request rejected", zap.Error(err))
			if req.IsNotification() {
				return nil
			}
			return protocol.NewErrorResponse(req.ID, protocol.AsError(err))
		}
	}

	result, err := s.run(ctx, req.Method, rt, peer, req.Params)
	duration := time.Since(start)

	if err != nil {
		if protocol.KindOf(err) == "" {
			logger.Error("handler failed", zap.Duration("duration", duration), zap.Error(err))
		} else {
			logger.Info("request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		if req.IsNotification() {
			return nil
		}
		return protocol.NewErrorResponse(req.ID, protocol.AsError(err))
	}

	logger.Debug("request handled", zap.Duration("duration", duration))

	if req.IsNotification() {
		return nil
	}

	resp, err := protocol.NewResultResponse(req.ID, result)
	if err != nil {
		logger.Error("failed to encode result", zap.Error(err))
		return protocol.NewErrorResponse(req.ID, protocol.NewKindError(protocol.KindInternalError, "failed to encode result"))
	}
	return resp
}

// checkSession enforces initialize-before-use and the explicit session
// claim, then marks the session active.
func (s *Server) checkSession(ctx context.Context, peer *Peer) error {
	bound := peer.SessionID()
	if bound == "" {
		return protocol.NewKindError(protocol.KindNotInitialized, "session not initialized: call initialize first")
	}
	if claimed := ClaimedSession(ctx); claimed != "" && claimed != bound {
		return protocol.NewKindErrorf(protocol.KindUnknownSession, "unknown session: %s", claimed)
	}
	_, err := s.sessions.Touch(bound)
	return err
}

// run executes a handler under the configured timeout. A handler that
// outlives the timeout keeps running in the background; its result is
// discarded.
func (s *Server) run(ctx context.Context, method string, rt route, peer *Peer, params json.RawMessage) (interface{}, error) {
	if s.handlerTimeout < 0 {
		return rt.handler(ctx, peer, params)
	}

	ctx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := rt.handler(ctx, peer, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, protocol.NewKindErrorf(protocol.KindHandlerError,
				"%s timed out after %s", method, s.handlerTimeout)
		}
		return nil, protocol.NewKindError(protocol.KindInternalError, "request cancelled")
	}
}

// Disconnect closes the session bound to peer, if any. Transports call it
// when the underlying connection goes away.
func (s *Server) Disconnect(peer *Peer, reason session.CloseReason) {
	if sid := peer.SessionID(); sid != "" {
		s.sessions.Close(sid, reason)
	}
}
