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
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"gopkg.in/cenkalti/backoff.v1"
)

// DefaultConnectTimeout bounds the wait for the endpoint event.
const DefaultConnectTimeout = 10 * time.Second

// SSETransport implements Transport over an SSE push stream plus POSTed
// requests. A dropped stream is never re-dialled: the owner decides
// whether to reconnect.
type SSETransport struct {
	streamURL  string
	base       *url.URL
	sseClient  *sse.Client
	httpClient *http.Client
	session    SessionID

	connectTimeout time.Duration

	events chan []byte

	mu          sync.Mutex
	stream      *streamAttempt
	messagesURL string
	connected   bool
	closed      bool
	cancel      context.CancelFunc

	logger *zap.Logger
}

// streamAttempt is the state of one subscription to the push stream. A
// failed Connect discards it so the next Connect starts clean.
type streamAttempt struct {
	endpointCh chan string
	done       chan struct{}
	once       sync.Once
	err        error // guarded by SSETransport.mu
}

func newStreamAttempt() *streamAttempt {
	return &streamAttempt{
		endpointCh: make(chan string, 1),
		done:       make(chan struct{}),
	}
}

// SSEConfig configures the SSE client transport.
type SSEConfig struct {
	Endpoint       string            // Server base URL, e.g. http://localhost:8000
	SSEPath        string            // Push-stream path (default: /sse)
	Headers        map[string]string // Custom headers
	ConnectTimeout time.Duration     // Wait for the endpoint event (default 10s)
	HTTPClient     *http.Client      // Client used for POSTs
	Logger         *zap.Logger
}

// NewSSETransport creates a new SSE transport. Nothing is dialled until
// Connect.
func NewSSETransport(config SSEConfig) (*SSETransport, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	base, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid endpoint %q", config.Endpoint)
	}
	if config.SSEPath == "" {
		config.SSEPath = "/sse"
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultPostTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	streamURL := base.ResolveReference(&url.URL{Path: config.SSEPath}).String()
	sseClient := sse.NewClient(streamURL)
	sseClient.ReconnectStrategy = &backoff.StopBackOff{}
	for k, v := range config.Headers {
		sseClient.Headers[k] = v
	}

	t := &SSETransport{
		streamURL:      streamURL,
		base:           base,
		sseClient:      sseClient,
		httpClient:     config.HTTPClient,
		connectTimeout: config.ConnectTimeout,
		events:         make(chan []byte, 100),
		stream:         newStreamAttempt(),
		logger:         logger,
	}

	sseClient.OnDisconnect(func(c *sse.Client) {
		t.logger.Warn("SSE disconnected", zap.String("endpoint", t.streamURL))
	})

	return t, nil
}

// Connect opens the push stream and waits for the server to announce the
// request endpoint. A failed Connect leaves the transport disconnected and
// may be retried.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if t.connected || t.cancel != nil {
		t.mu.Unlock()
		return errors.New("transport already connected")
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	a := t.stream
	t.mu.Unlock()

	t.logger.Debug("opening SSE stream", zap.String("endpoint", t.streamURL))

	go func() {
		err := t.sseClient.SubscribeRawWithContext(streamCtx, func(ev *sse.Event) {
			t.handleEvent(streamCtx, a, ev)
		})
		t.finish(a, err)
	}()

	timer := time.NewTimer(t.connectTimeout)
	defer timer.Stop()

	select {
	case endpoint := <-a.endpointCh:
		ref, err := url.Parse(endpoint)
		if err != nil {
			t.abort(a, cancel)
			return errors.Wrapf(err, "invalid endpoint event %q", endpoint)
		}
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return ErrTransportClosed
		}
		t.messagesURL = t.base.ResolveReference(ref).String()
		t.connected = true
		t.mu.Unlock()
		t.logger.Info("SSE transport connected",
			zap.String("endpoint", t.streamURL),
			zap.String("messages_url", t.messagesURL))
		return nil

	case <-a.done:
		err := t.streamErr(a)
		t.abort(a, cancel)
		return errors.Wrap(err, "SSE stream ended before endpoint event")

	case <-timer.C:
		t.abort(a, cancel)
		return errors.Newf("no endpoint event within %s", t.connectTimeout)

	case <-ctx.Done():
		t.abort(a, cancel)
		return ctx.Err()
	}
}

// abort tears down a failed connection attempt and resets the transport
// so Connect can be called again.
func (t *SSETransport) abort(a *streamAttempt, cancel context.CancelFunc) {
	cancel()
	select {
	case <-a.done:
	case <-time.After(t.connectTimeout):
		t.logger.Warn("SSE subscription did not stop after cancel")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.stream != a {
		return
	}
	t.cancel = nil
	t.stream = newStreamAttempt()
	for {
		select {
		case <-t.events:
		default:
			return
		}
	}
}

func (t *SSETransport) handleEvent(ctx context.Context, a *streamAttempt, ev *sse.Event) {
	switch string(ev.Event) {
	case "endpoint":
		select {
		case a.endpointCh <- string(ev.Data):
		default:
			t.logger.Warn("ignoring repeated endpoint event")
		}
	case "message", "":
		data := make([]byte, len(ev.Data))
		copy(data, ev.Data)
		select {
		case t.events <- data:
		case <-ctx.Done():
		}
	default:
		t.logger.Debug("ignoring SSE event", zap.ByteString("event", ev.Event))
	}
}

// finish records why the stream ended and wakes every receiver.
func (t *SSETransport) finish(a *streamAttempt, err error) {
	t.mu.Lock()
	switch {
	case t.closed:
		err = ErrTransportClosed
	case err == nil:
		err = io.EOF
	}
	if a.err == nil {
		a.err = err
	}
	t.mu.Unlock()

	a.once.Do(func() { close(a.done) })
	if !errors.Is(err, ErrTransportClosed) {
		t.logger.Warn("SSE stream ended", zap.Error(err))
	}
}

func (t *SSETransport) streamErr(a *streamAttempt) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a.err == nil {
		return io.EOF
	}
	return a.err
}

func (t *SSETransport) current() *streamAttempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stream
}

// Send implements Transport (POST to the announced request endpoint).
func (t *SSETransport) Send(ctx context.Context, message []byte) error {
	t.mu.Lock()
	closed, connected, endpoint := t.closed, t.connected, t.messagesURL
	t.mu.Unlock()

	if closed {
		return ErrTransportClosed
	}
	if !connected {
		return ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(message))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if sid := t.session.Get(); sid != "" {
		req.Header.Set(HeaderSessionID, sid)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "POST request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	return checkHTTPStatus(resp)
}

// Receive implements Transport (next "message" event).
func (t *SSETransport) Receive(ctx context.Context) ([]byte, error) {
	// Deliver anything already buffered before reporting the end of stream.
	select {
	case data := <-t.events:
		return data, nil
	default:
	}

	a := t.current()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-t.events:
		return data, nil
	case <-a.done:
		select {
		case data := <-t.events:
			return data, nil
		default:
		}
		return nil, t.streamErr(a)
	}
}

// SetSessionID implements SessionAware.
func (t *SSETransport) SetSessionID(id string) error {
	return t.session.Set(id)
}

// Close implements Transport. It asks the server to drop the connection
// and then closes the stream.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	connected, endpoint, cancel, a := t.connected, t.messagesURL, t.cancel, t.stream
	t.mu.Unlock()

	t.logger.Info("closing SSE transport")

	if connected {
		ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		headers := map[string]string{}
		if sid := t.session.Get(); sid != "" {
			headers[HeaderSessionID] = sid
		}
		if err := sendDelete(ctx, t.httpClient, endpoint, headers); err != nil {
			t.logger.Debug("connection termination failed", zap.Error(err))
		}
		stop()
	}

	if cancel != nil {
		cancel()
	}
	t.finish(a, ErrTransportClosed)
	return nil
}
