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
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"go.uber.org/zap"
)

// Defaults for SSEServerConfig.
const (
	DefaultMessagesPath = "/messages"
	DefaultQueueSize    = 64
	DefaultKeepAlive    = 15 * time.Second
)

// ConnectionParam names the query parameter identifying an SSE connection
// on the messages endpoint.
const ConnectionParam = "connection"

// SSEServer serves the push-stream transport. A client opens GET on the
// stream path, learns its request endpoint from the first "endpoint" event
// and then POSTs requests there. Every response is delivered as a
// "message" event on the stream, never in the POST reply.
//
// Each connection has a single worker, so its requests are dispatched one
// at a time in arrival order. Separate connections are served concurrently.
//
// Security: this transport has NO authentication or authorization. Use
// WarnIfNotLocalhost to check the listen address before starting.
type SSEServer struct {
	dispatcher   *server.Server
	messagesPath string
	queueSize    int
	keepAlive    time.Duration
	logger       *zap.Logger

	mu        sync.RWMutex
	conns     map[string]*sseConn
	bySession map[string]*sseConn
	closed    bool
}

// SSEServerConfig configures the SSE server transport.
type SSEServerConfig struct {
	Server       *server.Server // Required: dispatches requests
	MessagesPath string         // Request endpoint advertised to clients
	QueueSize    int            // Pending requests per connection
	KeepAlive    time.Duration  // Comment frame interval; negative disables
	Logger       *zap.Logger
}

type inboundRequest struct {
	body    []byte
	claimed string
}

type sseConn struct {
	id     string
	peer   *server.Peer
	inbox  chan inboundRequest
	out    chan []byte
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewSSEServer creates the SSE transport and subscribes it to session
// closure so expired or deleted sessions drop their stream.
func NewSSEServer(config SSEServerConfig) (*SSEServer, error) {
	if config.Server == nil {
		return nil, errors.New("server is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MessagesPath == "" {
		config.MessagesPath = DefaultMessagesPath
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = DefaultKeepAlive
	}

	s := &SSEServer{
		dispatcher:   config.Server,
		messagesPath: config.MessagesPath,
		queueSize:    config.QueueSize,
		keepAlive:    config.KeepAlive,
		logger:       config.Logger,
		conns:        make(map[string]*sseConn),
		bySession:    make(map[string]*sseConn),
	}
	config.Server.Sessions().OnClose(s.onSessionClosed)
	return s, nil
}

// StreamHandler returns the http.Handler for the push-stream endpoint.
func (s *SSEServer) StreamHandler() http.Handler {
	return http.HandlerFunc(s.handleStream)
}

// MessagesHandler returns the http.Handler for the request endpoint.
func (s *SSEServer) MessagesHandler() http.Handler {
	return http.HandlerFunc(s.handleMessages)
}

func (s *SSEServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	conn, err := s.open()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	logger := s.logger.With(zap.String("connection_id", conn.id))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	endpoint := fmt.Sprintf("%s?%s=%s", s.messagesPath, ConnectionParam, conn.id)
	if err := writeEvent(w, "endpoint", []byte(endpoint)); err != nil {
		s.closeConn(conn, session.ReasonTransport)
		return
	}
	flusher.Flush()
	logger.Info("SSE stream opened", zap.String("remote_addr", r.RemoteAddr))

	go s.serve(conn)

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			logger.Info("SSE stream closed by client")
			s.closeConn(conn, session.ReasonTransport)
			return

		case <-conn.done:
			logger.Info("SSE stream closed by server")
			return

		case msg := <-conn.out:
			if err := writeEvent(w, "message", msg); err != nil {
				logger.Warn("SSE write failed", zap.Error(err))
				s.closeConn(conn, session.ReasonTransport)
				return
			}
			flusher.Flush()

		case <-tick:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				s.closeConn(conn, session.ReasonTransport)
				return
			}
			flusher.Flush()
		}
	}
}

// serve is the connection's worker. Requests still queued when the
// connection closes are dropped; a handler already running sees its
// context cancelled and its response is discarded.
func (s *SSEServer) serve(conn *sseConn) {
	for {
		select {
		case <-conn.done:
			return
		case in := <-conn.inbox:
			ctx := server.WithClaimedSession(conn.ctx, in.claimed)
			resp, err := s.dispatcher.HandleMessage(ctx, conn.peer, in.body)
			if err != nil {
				s.logger.Error("failed to handle message", zap.String("connection_id", conn.id), zap.Error(err))
				continue
			}
			if resp == nil {
				continue
			}
			select {
			case conn.out <- resp:
			case <-conn.done:
				return
			}
		}
	}
}

func (s *SSEServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	connID := r.URL.Query().Get(ConnectionParam)
	if connID == "" {
		http.Error(w, "connection parameter required", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	conn, exists := s.conns[connID]
	s.mu.RUnlock()

	switch r.Method {
	case http.MethodPost:
	case http.MethodDelete:
		if !exists {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		s.closeConn(conn, session.ReasonClient)
		w.WriteHeader(http.StatusOK)
		return
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := readJSONBody(w, r, s.logger)
	if !ok {
		return
	}
	if !exists {
		http.Error(w, "Connection not found", http.StatusNotFound)
		return
	}

	in := inboundRequest{body: body, claimed: r.Header.Get(HeaderSessionID)}
	select {
	case <-conn.done:
		http.Error(w, "Connection not found", http.StatusNotFound)
		return
	default:
	}
	select {
	case conn.inbox <- in:
		w.WriteHeader(http.StatusAccepted)
	default:
		s.logger.Warn("request queue full", zap.String("connection_id", conn.id))
		http.Error(w, "Too many pending requests", http.StatusServiceUnavailable)
	}
}

func (s *SSEServer) open() (*sseConn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &sseConn{
		id:     uuid.NewString(),
		inbox:  make(chan inboundRequest, s.queueSize),
		out:    make(chan []byte),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	conn.peer = server.NewPeer(func(sessionID string) {
		s.mu.Lock()
		s.bySession[sessionID] = conn
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return nil, errors.New("server is shutting down")
	}
	s.conns[conn.id] = conn
	return conn, nil
}

// closeConn tears a connection down exactly once and closes its session.
func (s *SSEServer) closeConn(conn *sseConn, reason session.CloseReason) {
	first := false
	conn.once.Do(func() {
		first = true
		close(conn.done)
		conn.cancel()
	})
	if !first {
		return
	}

	s.mu.Lock()
	delete(s.conns, conn.id)
	if sid := conn.peer.SessionID(); sid != "" && s.bySession[sid] == conn {
		delete(s.bySession, sid)
	}
	s.mu.Unlock()

	s.dispatcher.Disconnect(conn.peer, reason)
	s.logger.Debug("connection closed",
		zap.String("connection_id", conn.id),
		zap.String("reason", string(reason)))
}

// onSessionClosed drops the stream of a session closed elsewhere, for
// example by the idle sweeper.
func (s *SSEServer) onSessionClosed(sessionID string, reason session.CloseReason) {
	s.mu.Lock()
	conn, ok := s.bySession[sessionID]
	delete(s.bySession, sessionID)
	s.mu.Unlock()
	if ok {
		s.closeConn(conn, reason)
	}
}

// ConnectionCount returns the number of open streams.
func (s *SSEServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close drops every open stream and refuses new ones. It is safe to call
// Close multiple times.
func (s *SSEServer) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*sseConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.closeConn(c, session.ReasonShutdown)
	}
}

// writeEvent writes one SSE frame. data must not contain newlines; encoded
// JSON never does.
func writeEvent(w http.ResponseWriter, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
