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

	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"go.uber.org/zap"
)

// handleInitialize opens a session and binds it to the peer.
func (s *Server) handleInitialize(ctx context.Context, peer *Peer, params json.RawMessage) (interface{}, error) {
	if sid := peer.SessionID(); sid != "" {
		return nil, protocol.NewKindErrorf(protocol.KindInvalidRequest, "connection already initialized (session %s)", sid)
	}

	var initParams protocol.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, protocol.NewKindErrorf(protocol.KindInvalidArguments, "invalid initialize params: %v", err)
		}
	}

	sess, err := s.sessions.Open(initParams)
	if err != nil {
		s.logger.Warn("client protocol version rejected",
			zap.String("client_version", initParams.ProtocolVersion),
			zap.Strings("supported", protocol.SupportedVersions))
		return nil, err
	}
	if !peer.bind(sess.ID) {
		// Lost a race with a concurrent initialize on the same peer.
		s.sessions.Close(sess.ID, session.ReasonTransport)
		return nil, protocol.NewKindError(protocol.KindInvalidRequest, "connection already initialized")
	}
	if ctx.Err() != nil {
		// The connection went away before the session was bound to it.
		s.sessions.Close(sess.ID, session.ReasonTransport)
		return nil, protocol.NewKindError(protocol.KindInternalError, "connection closed during initialize")
	}

	if initParams.ClientInfo.Name != "" {
		s.logger.Info("client connected",
			zap.String("session_id", sess.ID),
			zap.String("client_name", initParams.ClientInfo.Name),
			zap.String("client_version", initParams.ClientInfo.Version))
	}

	return protocol.InitializeResult{
		ProtocolVersion: sess.ProtocolVersion,
		SessionID:       sess.ID,
		ServerInfo:      s.info,
		Capabilities:    sess.Capabilities,
	}, nil
}

// handleInitialized handles the initialized notification (no-op).
func (s *Server) handleInitialized(_ context.Context, peer *Peer, _ json.RawMessage) (interface{}, error) {
	s.logger.Debug("client initialized", zap.String("session_id", peer.SessionID()))
	return nil, nil
}

// handlePing handles the ping request. It needs no session.
func (s *Server) handlePing(_ context.Context, _ *Peer, _ json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

// handleToolsList returns the full catalog in registration order.
func (s *Server) handleToolsList(_ context.Context, _ *Peer, _ json.RawMessage) (interface{}, error) {
	return protocol.ToolListResult{Tools: s.tools.List()}, nil
}

type executeResult struct {
	Result interface{} `json:"result"`
}

// handleToolExecute validates and runs one tool.
func (s *Server) handleToolExecute(ctx context.Context, _ *Peer, params json.RawMessage) (interface{}, error) {
	var execParams protocol.ExecuteToolParams
	if len(params) == 0 {
		return nil, protocol.InvalidArgumentsError("name", "tool name is required")
	}
	if err := json.Unmarshal(params, &execParams); err != nil {
		return nil, protocol.NewKindErrorf(protocol.KindInvalidArguments, "invalid tool execute params: %v", err)
	}
	if execParams.Name == "" {
		return nil, protocol.InvalidArgumentsError("name", "tool name is required")
	}

	result, err := s.tools.Invoke(ctx, execParams.Name, execParams.Arguments)
	if err != nil {
		return nil, err
	}
	return executeResult{Result: result}, nil
}
