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
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"go.uber.org/zap/zaptest"
)

func newDispatcher(t *testing.T) *server.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)

	reg := registry.New(logger)
	reg.MustRegister(registry.Definition{
		Name: "calculator:add",
		Parameters: []protocol.Parameter{
			{Name: "a", Type: protocol.TypeNumber, Required: true},
			{Name: "b", Type: protocol.TypeNumber, Required: true},
		},
	}, func(ctx context.Context, args registry.Arguments) (interface{}, error) {
		a, _ := args.Float("a")
		b, _ := args.Float("b")
		return a + b, nil
	})
	reg.MustRegister(registry.Definition{Name: "block"}, func(ctx context.Context, args registry.Arguments) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	reg.Seal()

	s, err := server.NewServer(server.Config{
		Tools:    reg,
		Sessions: session.NewManager(session.Config{Capabilities: protocol.Capabilities{Tools: true}, Logger: logger}),
		Logger:   logger,
	})
	require.NoError(t, err)
	return s
}

// newSSETestServer mounts an SSEServer on an httptest server. Streams are
// dropped before the HTTP server shuts down.
func newSSETestServer(t *testing.T) (*SSEServer, *httptest.Server) {
	t.Helper()
	srv, err := NewSSEServer(SSEServerConfig{
		Server:    newDispatcher(t),
		KeepAlive: -1,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/sse", srv.StreamHandler())
	mux.Handle(DefaultMessagesPath, srv.MessagesHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return srv, ts
}

type rawEvent struct {
	event string
	data  string
}

// streamReader reads SSE frames from a raw GET response.
type streamReader struct {
	resp   *http.Response
	scan   *bufio.Scanner
	cancel context.CancelFunc
}

func openStream(t *testing.T, url string) *streamReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sr := &streamReader{resp: resp, scan: bufio.NewScanner(resp.Body), cancel: cancel}
	t.Cleanup(sr.close)
	return sr
}

func (s *streamReader) close() {
	s.cancel()
	_ = s.resp.Body.Close()
}

// next returns the next event, or ok=false when the stream ends.
func (s *streamReader) next(t *testing.T) (rawEvent, bool) {
	t.Helper()
	type result struct {
		ev rawEvent
		ok bool
	}
	ch := make(chan result, 1)
	go func() {
		var ev rawEvent
		for s.scan.Scan() {
			line := s.scan.Text()
			switch {
			case line == "":
				if ev.event != "" || ev.data != "" {
					ch <- result{ev, true}
					return
				}
			case strings.HasPrefix(line, "event: "):
				ev.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		ch <- result{ok: false}
	}()

	select {
	case r := <-ch:
		return r.ev, r.ok
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for SSE event")
		return rawEvent{}, false
	}
}

func postJSON(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
