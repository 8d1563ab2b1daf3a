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
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DirectTransport implements Transport over the direct endpoint: each
// request is a POST whose body carries the response. Responses are queued
// so callers read them through Receive exactly as with the SSE transport.
type DirectTransport struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
	session  SessionID

	messages chan []byte
	done     chan struct{}

	mu        sync.Mutex
	connected bool
	closed    bool

	logger *zap.Logger
}

// DirectConfig configures the direct client transport.
type DirectConfig struct {
	Endpoint   string            // Full endpoint URL, e.g. http://localhost:8000/mcp
	Headers    map[string]string // Custom headers
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewDirectTransport creates a new direct transport.
func NewDirectTransport(config DirectConfig) (*DirectTransport, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultPostTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DirectTransport{
		endpoint: config.Endpoint,
		headers:  config.Headers,
		client:   config.HTTPClient,
		messages: make(chan []byte, 100),
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Connect implements Transport. The direct endpoint has no stream to open;
// Connect only marks the transport usable.
func (t *DirectTransport) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.connected = true
	return nil
}

// Send implements Transport by POSTing one message.
func (t *DirectTransport) Send(ctx context.Context, message []byte) error {
	t.mu.Lock()
	closed, connected := t.closed, t.connected
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	if !connected {
		return ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(message))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if sid := t.session.Get(); sid != "" {
		req.Header.Set(HeaderSessionID, sid)
	}

	t.logger.Debug("sending POST request",
		zap.String("endpoint", t.endpoint),
		zap.Int("message_size", len(message)))

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "POST request failed")
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			t.session.Clear()
		}
		return err
	}

	if sid := resp.Header.Get(HeaderSessionID); sid != "" && t.session.Get() == "" {
		if err := t.session.Set(sid); err != nil {
			t.logger.Warn("invalid session ID from server", zap.Error(err))
		}
	}

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		// Notification acknowledgment.
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errors.Newf("unexpected Content-Type: %s", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if len(data) == 0 {
		return nil
	}

	select {
	case t.messages <- data:
		return nil
	case <-t.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements Transport.
func (t *DirectTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-t.messages:
		return msg, nil
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-t.messages:
		return msg, nil
	case <-t.done:
		return nil, ErrTransportClosed
	}
}

// SetSessionID implements SessionAware.
func (t *DirectTransport) SetSessionID(id string) error {
	return t.session.Set(id)
}

// Close implements Transport. It terminates the server session, if any.
func (t *DirectTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.logger.Info("closing direct transport")

	if sid := t.session.Get(); sid != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sendDelete(ctx, t.client, t.endpoint, map[string]string{HeaderSessionID: sid}); err != nil {
			t.logger.Debug("session termination failed", zap.Error(err))
		}
	}

	close(t.done)
	return nil
}
