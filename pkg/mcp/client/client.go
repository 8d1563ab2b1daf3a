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
// Package client implements the agent side of the tool protocol: a
// connection state machine that performs connect, initialize, discovery and
// invocation over a transport and correlates responses by request id.
package client

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
	"go.uber.org/zap"
)

// Default client identity sent with initialize.
const (
	DefaultName    = "LLM Agent"
	DefaultVersion = "1.0.0"
)

// DefaultRequestTimeout bounds the wait for a single response.
const DefaultRequestTimeout = 30 * time.Second

// State is the lifecycle state of a Client.
type State int32

// Lifecycle states. Closed is terminal.
const (
	StateDisconnected State = iota
	StateConnecting
	StateInitialized
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateInitialized:
		return "initialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client represents a connection to a tool server
type Client struct {
	transport transport.Transport
	logger    *zap.Logger

	info            protocol.Implementation
	protocolVersion string
	requestTimeout  time.Duration

	// State
	mu           sync.RWMutex
	state        State
	initializing bool
	sessionID    string
	serverInfo   protocol.Implementation
	capabilities protocol.Capabilities
	lostErr      error

	// Request tracking
	nextID    int64
	pending   map[string]chan *protocol.Response
	pendingMu sync.Mutex

	// Tool cache
	tools   []protocol.Tool
	toolsMu sync.RWMutex

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	lost     chan struct{}
	lostOnce sync.Once
	wg       sync.WaitGroup
}

// Config configures the client
type Config struct {
	Transport transport.Transport
	Logger    *zap.Logger

	// Client info
	Name    string
	Version string

	// ProtocolVersion requested in initialize. Default: protocol.ProtocolVersion.
	ProtocolVersion string

	// Timeouts
	RequestTimeout time.Duration // Default: 30s
}

// NewClient creates a disconnected client.
func NewClient(config Config) (*Client, error) {
	if config.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}
	if config.ProtocolVersion == "" {
		config.ProtocolVersion = protocol.ProtocolVersion
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		transport:       config.Transport,
		logger:          config.Logger,
		info:            protocol.Implementation{Name: config.Name, Version: config.Version},
		protocolVersion: config.ProtocolVersion,
		requestTimeout:  config.RequestTimeout,
		pending:         make(map[string]chan *protocol.Response),
		ctx:             ctx,
		cancel:          cancel,
		lost:            make(chan struct{}),
	}, nil
}

// Connect establishes the transport's push stream and starts the receive
// loop. A failed connect leaves the client disconnected so the caller may
// retry; the client itself never retries.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateDisconnected:
	default:
		c.mu.Unlock()
		return errors.Wrap(ErrNotReady, "already connected")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.logger.Warn("connect failed", zap.Error(err))
		return errors.Mark(errors.Wrap(err, "connect"), ErrConnection)
	}

	c.wg.Add(1)
	go c.receiveLoop()

	c.logger.Debug("client connected")
	return nil
}

// Initialize performs the handshake and binds the session.
func (c *Client) Initialize(ctx context.Context) (protocol.InitializeResult, error) {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return protocol.InitializeResult{}, c.closedErr()
	case c.state == StateDisconnected:
		c.mu.Unlock()
		return protocol.InitializeResult{}, errors.Wrap(ErrNotReady, "initialize before connect")
	case c.state != StateConnecting:
		c.mu.Unlock()
		return protocol.InitializeResult{}, errors.Wrap(ErrNotReady, "already initialized")
	case c.initializing:
		c.mu.Unlock()
		return protocol.InitializeResult{}, errors.Wrap(ErrNotReady, "initialization already in progress")
	}
	c.initializing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.initializing = false
		c.mu.Unlock()
	}()

	params := protocol.InitializeParams{
		ProtocolVersion: c.protocolVersion,
		ClientInfo:      c.info,
		Capabilities:    protocol.Capabilities{Tools: true},
	}

	c.logger.Debug("Sending initialize request")
	resp, err := c.call(ctx, protocol.MethodInitialize, params)
	if err != nil {
		c.logger.Error("Initialize request failed", zap.Error(err))
		return protocol.InitializeResult{}, errors.Mark(errors.Wrap(err, "initialize"), ErrHandshake)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return protocol.InitializeResult{}, errors.Mark(errors.Wrap(err, "failed to parse initialize result"), ErrHandshake)
	}
	if result.SessionID == "" {
		return protocol.InitializeResult{}, errors.Mark(errors.New("server returned no session id"), ErrHandshake)
	}
	if c.protocolVersion != result.ProtocolVersion {
		return protocol.InitializeResult{}, errors.Mark(
			errors.Newf("protocol version mismatch: client=%s server=%s", c.protocolVersion, result.ProtocolVersion),
			ErrHandshake)
	}

	if sa, ok := c.transport.(transport.SessionAware); ok {
		if err := sa.SetSessionID(result.SessionID); err != nil {
			return protocol.InitializeResult{}, errors.Mark(errors.Wrap(err, "session id"), ErrHandshake)
		}
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return protocol.InitializeResult{}, c.closedErr()
	}
	c.state = StateInitialized
	c.sessionID = result.SessionID
	c.serverInfo = result.ServerInfo
	c.capabilities = result.Capabilities
	c.mu.Unlock()

	c.logger.Info("client initialized",
		zap.String("session_id", result.SessionID),
		zap.String("server", result.ServerInfo.Name),
		zap.String("version", result.ServerInfo.Version),
		zap.Bool("tools", result.Capabilities.Tools))

	// Tell the server the client is ready; a notification has no response.
	if err := c.notify(ctx, protocol.MethodInitialized); err != nil {
		c.logger.Warn("failed to send initialized notification", zap.Error(err))
	}

	return result, nil
}

// Ping checks the connection. It needs no session.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.require(StateConnecting, StateInitialized, StateReady); err != nil {
		return err
	}
	_, err := c.call(ctx, protocol.MethodPing, struct{}{})
	return err
}

// State returns the lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SessionID returns the negotiated session id, or "" before initialize.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// ServerInfo returns the server implementation info
func (c *Client) ServerInfo() protocol.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Capabilities returns the negotiated capability set.
func (c *Client) Capabilities() protocol.Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Close tears down the transport. Outstanding requests fail with
// ErrCancelled and every later call fails with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed && c.ctx.Err() != nil {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	// Stop the receiver before the transport so its exit is not mistaken
	// for a lost connection.
	c.cancel()
	c.markLost(nil)

	err := c.transport.Close()
	if err != nil {
		c.logger.Error("failed to close transport", zap.Error(err))
	}

	c.wg.Wait()

	c.logger.Info("client closed")
	return err
}

// require fails unless the client is in one of the given states.
func (c *Client) require(states ...State) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range states {
		if c.state == s {
			return nil
		}
	}
	if c.state == StateClosed {
		return c.closedErr()
	}
	return errors.Wrapf(ErrNotReady, "client is %s", c.state)
}

// closedErr must be called with mu held.
func (c *Client) closedErr() error {
	if c.lostErr != nil {
		return errors.Mark(errors.Wrap(c.lostErr, "connection lost"), ErrClosed)
	}
	return ErrClosed
}

// call sends a request and waits for its response. A failure response is
// returned as its *protocol.Error.
func (c *Client) call(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s params", method)
	}
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      c.nextRequestID(),
		Method:  method,
		Params:  raw,
	}
	return c.sendRequest(ctx, req)
}

// notify sends a notification (no id, no response).
func (c *Client) notify(ctx context.Context, method string) error {
	data, err := json.Marshal(&protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: method})
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}
	return c.transport.Send(ctx, data)
}

// sendRequest sends a request and waits for response
func (c *Client) sendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := protocol.ValidateRequest(req); err != nil {
		return nil, err
	}

	respChan := make(chan *protocol.Response, 1)
	reqIDStr := req.ID.String()

	c.pendingMu.Lock()
	c.pending[reqIDStr] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqIDStr)
		c.pendingMu.Unlock()
	}()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	c.logger.Debug("Sending request via transport",
		zap.String("method", req.Method),
		zap.String("id", reqIDStr))

	if err := c.transport.Send(ctx, reqJSON); err != nil {
		select {
		case <-c.lost:
			return nil, errors.Mark(errors.Wrapf(err, "%s", req.Method), ErrCancelled)
		default:
		}
		if ctx.Err() != nil {
			return nil, contextFailure(ctx, req.Method)
		}
		c.logger.Error("Failed to send request via transport",
			zap.String("method", req.Method),
			zap.Error(err))
		return nil, errors.Mark(errors.Wrapf(err, "failed to send %s", req.Method), ErrConnection)
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		c.logger.Debug("Received response",
			zap.String("method", req.Method),
			zap.String("id", reqIDStr))
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil

	case <-c.lost:
		return nil, errors.Wrapf(ErrCancelled, "%s: connection closed", req.Method)

	case <-timer.C:
		c.logger.Warn("request timed out",
			zap.String("method", req.Method),
			zap.String("id", reqIDStr),
			zap.Duration("timeout", c.requestTimeout))
		return nil, errors.Wrapf(ErrTimeout, "%s after %s", req.Method, c.requestTimeout)

	case <-ctx.Done():
		return nil, contextFailure(ctx, req.Method)
	}
}

// receiveLoop receives messages from transport until the stream ends.
func (c *Client) receiveLoop() {
	defer c.wg.Done()
	c.logger.Debug("receiveLoop started")

	for {
		data, err := c.transport.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				c.logger.Debug("receiveLoop: normal shutdown", zap.Error(err))
				return
			}
			c.logger.Warn("connection lost", zap.Error(err))
			c.markLost(err)
			return
		}

		if len(data) == 0 {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("received malformed message", zap.ByteString("data", data), zap.Error(err))
			continue
		}

		switch {
		case msg.IsResponse() && msg.ID != nil:
			c.handleResponse(msg.Response())
		case msg.IsResponse():
			// A failure the server could not correlate, e.g. a parse error.
			c.logger.Warn("received uncorrelated error response", zap.ByteString("data", data))
		case msg.Method != "":
			c.logger.Debug("ignoring server message", zap.String("method", msg.Method))
		default:
			c.logger.Warn("received unrecognized message", zap.ByteString("data", data))
		}
	}
}

// markLost fails every outstanding and future request. A non-nil cause
// records an unexpected drop of the connection.
func (c *Client) markLost(cause error) {
	c.lostOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		if cause != nil {
			c.lostErr = cause
		}
		c.mu.Unlock()
		close(c.lost)
	})
}

// handleResponse routes response to pending request
func (c *Client) handleResponse(resp *protocol.Response) {
	reqIDStr := resp.ID.String()

	c.pendingMu.Lock()
	respChan, exists := c.pending[reqIDStr]
	if exists {
		// Each id is answered at most once.
		delete(c.pending, reqIDStr)
	}
	c.pendingMu.Unlock()

	if !exists {
		c.logger.Warn("received response for unknown request", zap.String("id", reqIDStr))
		return
	}
	respChan <- resp
}

// nextRequestID generates next request ID
func (c *Client) nextRequestID() *protocol.RequestID {
	id := atomic.AddInt64(&c.nextID, 1)
	return protocol.NewNumericRequestID(id)
}
