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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newDirectTestServer(t *testing.T) (*DirectServer, *httptest.Server) {
	t.Helper()
	srv, err := NewDirectServer(DirectServerConfig{Server: newDispatcher(t), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return srv, ts
}

func readResponse(t *testing.T, resp *http.Response) protocol.Response {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out protocol.Response
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func directInitialize(t *testing.T, url string) string {
	t.Helper()
	resp := postJSON(t, url, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := resp.Header.Get(HeaderSessionID)
	require.NotEmpty(t, sessionID)

	out := readResponse(t, resp)
	require.Nil(t, out.Error)
	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(out.Result, &result))
	assert.Equal(t, sessionID, result.SessionID)
	return sessionID
}

func TestDirectServer_Initialize(t *testing.T) {
	srv, ts := newDirectTestServer(t)

	directInitialize(t, ts.URL)
	assert.Equal(t, 1, srv.dispatcher.Sessions().Count())
}

func TestDirectServer_SessionRequired(t *testing.T) {
	_, ts := newDirectTestServer(t)

	resp := postJSON(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := readResponse(t, resp)
	require.NotNil(t, out.Error)
	assert.Equal(t, protocol.KindNotInitialized, out.Error.Kind())
}

func TestDirectServer_ExecuteWithSession(t *testing.T) {
	_, ts := newDirectTestServer(t)
	sessionID := directInitialize(t, ts.URL)

	resp := postJSON(t, ts.URL, `{"jsonrpc":"2.0","id":3,"method":"tools/execute","params":{"name":"calculator:add","arguments":{"a":145,"b":237}}}`,
		map[string]string{HeaderSessionID: sessionID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	out := readResponse(t, resp)
	require.Nil(t, out.Error)
	assert.JSONEq(t, `{"result":382}`, string(out.Result))
}

func TestDirectServer_UnknownSession(t *testing.T) {
	_, ts := newDirectTestServer(t)

	resp := postJSON(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		map[string]string{HeaderSessionID: "no-such-session"})
	out := readResponse(t, resp)
	require.NotNil(t, out.Error)
	assert.Equal(t, protocol.KindUnknownSession, out.Error.Kind())
}

func TestDirectServer_Notification(t *testing.T) {
	_, ts := newDirectTestServer(t)
	sessionID := directInitialize(t, ts.URL)

	resp := postJSON(t, ts.URL, `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		map[string]string{HeaderSessionID: sessionID})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDirectServer_DeleteSession(t *testing.T) {
	srv, ts := newDirectTestServer(t)
	sessionID := directInitialize(t, ts.URL)

	del := func(id string) int {
		req, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
		require.NoError(t, err)
		if id != "" {
			req.Header.Set(HeaderSessionID, id)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, del(""))
	assert.Equal(t, http.StatusOK, del(sessionID))
	assert.Equal(t, http.StatusNotFound, del(sessionID))
	assert.Equal(t, 0, srv.dispatcher.Sessions().Count())

	resp := postJSON(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		map[string]string{HeaderSessionID: sessionID})
	out := readResponse(t, resp)
	require.NotNil(t, out.Error)
	assert.Equal(t, protocol.KindUnknownSession, out.Error.Kind())
}

// newGatedDirectServer serves a "gate" tool that blocks until release is
// closed and signals entered each time it starts.
func newGatedDirectServer(t *testing.T) (srv *DirectServer, ts *httptest.Server, entered chan struct{}, release chan struct{}) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	entered = make(chan struct{}, 8)
	release = make(chan struct{})

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
	reg.MustRegister(registry.Definition{Name: "gate"}, func(ctx context.Context, args registry.Arguments) (interface{}, error) {
		entered <- struct{}{}
		select {
		case <-release:
			return "open", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	reg.Seal()

	dispatcher, err := server.NewServer(server.Config{
		Tools:    reg,
		Sessions: session.NewManager(session.Config{Capabilities: protocol.Capabilities{Tools: true}, Logger: logger}),
		Logger:   logger,
	})
	require.NoError(t, err)

	srv, err = NewDirectServer(DirectServerConfig{Server: dispatcher, Logger: logger})
	require.NoError(t, err)
	ts = httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return srv, ts, entered, release
}

type postResult struct {
	body string
	err  error
}

// postAsync sends a request from a goroutine; the result arrives on the
// returned channel.
func postAsync(url, sessionID, body string) <-chan postResult {
	ch := make(chan postResult, 1)
	go func() {
		req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
		if err != nil {
			ch <- postResult{err: err}
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderSessionID, sessionID)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			ch <- postResult{err: err}
			return
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		ch <- postResult{body: string(data), err: err}
	}()
	return ch
}

func TestDirectServer_SerializesSessionRequests(t *testing.T) {
	srv, ts, entered, release := newGatedDirectServer(t)
	first := directInitialize(t, ts.URL)
	second := directInitialize(t, ts.URL)

	gated := postAsync(ts.URL, first, `{"jsonrpc":"2.0","id":10,"method":"tools/execute","params":{"name":"gate","arguments":{}}}`)
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("gate tool never started")
	}

	queued := postAsync(ts.URL, first, `{"jsonrpc":"2.0","id":11,"method":"tools/execute","params":{"name":"calculator:add","arguments":{"a":1,"b":2}}}`)

	// Another session is not held up by the first one.
	other := postAsync(ts.URL, second, `{"jsonrpc":"2.0","id":12,"method":"tools/execute","params":{"name":"calculator:add","arguments":{"a":2,"b":2}}}`)
	select {
	case r := <-other:
		require.NoError(t, r.err)
		assert.Contains(t, r.body, `"result":{"result":4}`)
	case <-time.After(5 * time.Second):
		t.Fatal("request on another session was blocked")
	}

	select {
	case <-queued:
		t.Fatal("second request on the same session ran before the first finished")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 2, srv.QueueCount())

	close(release)
	for _, ch := range []<-chan postResult{gated, queued} {
		select {
		case r := <-ch:
			require.NoError(t, r.err)
			assert.NotContains(t, r.body, `"error"`)
		case <-time.After(5 * time.Second):
			t.Fatal("queued request never completed")
		}
	}
}

func TestDirectServer_SessionCloseStopsQueue(t *testing.T) {
	srv, ts, entered, _ := newGatedDirectServer(t)
	sessionID := directInitialize(t, ts.URL)

	gated := postAsync(ts.URL, sessionID, `{"jsonrpc":"2.0","id":10,"method":"tools/execute","params":{"name":"gate","arguments":{}}}`)
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("gate tool never started")
	}
	require.Equal(t, 1, srv.QueueCount())

	require.True(t, srv.dispatcher.Sessions().Close(sessionID, session.ReasonClient))
	assert.Equal(t, 0, srv.QueueCount())

	select {
	case r := <-gated:
		require.NoError(t, r.err)
		assert.Contains(t, r.body, `"error"`, "the running request is cancelled with its session")
	case <-time.After(5 * time.Second):
		t.Fatal("request survived its session")
	}
}

func TestDirectServer_RequestValidation(t *testing.T) {
	_, ts := newDirectTestServer(t)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "POST, DELETE", resp.Header.Get("Allow"))

	resp = postJSON(t, ts.URL, ``, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL, "text/plain", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = http.Post(ts.URL, "application/json; charset=utf-8", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewDirectServer_NilServer(t *testing.T) {
	_, err := NewDirectServer(DirectServerConfig{})
	assert.Error(t, err)
}

func TestWarnIfNotLocalhost(t *testing.T) {
	tests := []struct {
		name       string
		addr       string
		expectWarn bool
	}{
		{"localhost:8000", "127.0.0.1:8000", false},
		{"localhost no port", "127.0.0.1", false},
		{"ipv6 localhost", "[::1]:8000", false},
		{"localhost name", "localhost:8000", false},
		{"all interfaces", "0.0.0.0:8000", true},
		{"empty host (all)", ":8000", true},
		{"ipv6 all", "[::]:8000", true},
		{"external IP", "192.168.1.100:8000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			logger := zap.New(core)

			WarnIfNotLocalhost(logger, tt.addr)

			if tt.expectWarn {
				assert.GreaterOrEqual(t, logs.Len(), 1, "expected a warning log for addr=%s", tt.addr)
			} else {
				assert.Equal(t, 0, logs.Len(), "expected no warning for addr=%s", tt.addr)
			}
		})
	}
}

func TestWarnIfNotLocalhost_NilLogger(t *testing.T) {
	// Should not panic.
	WarnIfNotLocalhost(nil, "0.0.0.0:8000")
}

func TestSessionID(t *testing.T) {
	var s SessionID
	assert.Empty(t, s.Get())

	require.NoError(t, s.Set("abc-123"))
	assert.Equal(t, "abc-123", s.Get())

	assert.Error(t, s.Set("has space"))
	assert.Error(t, s.Set("tab\t"))
	assert.Equal(t, "abc-123", s.Get(), "invalid ids are rejected without clobbering")

	s.Clear()
	assert.Empty(t, s.Get())
}
