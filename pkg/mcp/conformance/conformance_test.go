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
// Package conformance checks the wire behaviour of the tool server end to
// end: raw JSON-RPC bytes in, raw envelopes out, through the real HTTP
// transports and the calculator tool set.
//
// Test coverage:
// - JSON-RPC 2.0 envelope rules
// - Initialize handshake, version negotiation and capabilities
// - Session enforcement (not initialized, unknown and closed sessions)
// - Tool listing and execution failures with their wire codes
package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
	"github.com/teradata-labs/toolbridge/pkg/tools/calculator"
	"go.uber.org/zap/zaptest"
)

// wireClient posts raw messages to the direct endpoint.
type wireClient struct {
	t        *testing.T
	endpoint string
	session  string
}

func setupServer(t *testing.T) *wireClient {
	t.Helper()
	logger := zaptest.NewLogger(t)

	reg := registry.New(logger)
	require.NoError(t, calculator.Register(reg, logger))
	reg.Seal()

	srv, err := server.NewServer(server.Config{
		Tools:    reg,
		Sessions: session.NewManager(session.Config{Capabilities: protocol.Capabilities{Tools: true}, Logger: logger}),
		Logger:   logger,
	})
	require.NoError(t, err)
	direct, err := transport.NewDirectServer(transport.DirectServerConfig{Server: srv, Logger: logger})
	require.NoError(t, err)

	ts := httptest.NewServer(direct)
	t.Cleanup(ts.Close)
	return &wireClient{t: t, endpoint: ts.URL}
}

// post sends body and returns the HTTP status and decoded envelope (nil for
// an empty body).
func (c *wireClient) post(body string) (int, map[string]interface{}) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewBufferString(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set(transport.HeaderSessionID, c.session)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if sid := resp.Header.Get(transport.HeaderSessionID); sid != "" && c.session == "" {
		c.session = sid
	}

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	var env map[string]interface{}
	require.NoError(c.t, json.Unmarshal(data, &env), string(data))
	return resp.StatusCode, env
}

func (c *wireClient) initialize() map[string]interface{} {
	c.t.Helper()
	_, env := c.post(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1.0","clientInfo":{"name":"conformance-test","version":"1.0.0"},"capabilities":{"tools":true}}}`)
	require.NotNil(c.t, env)
	require.Nil(c.t, env["error"], env)
	return env["result"].(map[string]interface{})
}

// errorOf asserts env is an error envelope and returns code and kind.
func errorOf(t *testing.T, env map[string]interface{}) (float64, string) {
	t.Helper()
	require.NotNil(t, env)
	assert.Equal(t, "2.0", env["jsonrpc"])
	assert.NotContains(t, env, "result")
	e, ok := env["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", env)
	assert.NotEmpty(t, e["message"])
	data, _ := e["data"].(map[string]interface{})
	kind, _ := data["kind"].(string)
	return e["code"].(float64), kind
}

func TestConformance_Initialize(t *testing.T) {
	c := setupServer(t)
	result := c.initialize()

	assert.Equal(t, "1.0", result["protocolVersion"])
	assert.NotEmpty(t, result["sessionId"])
	assert.Equal(t, c.session, result["sessionId"], "direct transport echoes the session in a header")
	assert.Equal(t, map[string]interface{}{"name": "MCP Calculator Server", "version": "1.0.0"}, result["serverInfo"])
	assert.Equal(t, map[string]interface{}{"tools": true, "resources": false, "prompts": false}, result["capabilities"])
}

func TestConformance_ProtocolVersion(t *testing.T) {
	c := setupServer(t)

	_, env := c.post(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"9.9"}}`)
	code, kind := errorOf(t, env)
	assert.Equal(t, float64(protocol.UnsupportedVersionCode), code)
	assert.Equal(t, string(protocol.KindUnsupportedVersion), kind)
	supported := env["error"].(map[string]interface{})["data"].(map[string]interface{})["supported"]
	assert.Equal(t, []interface{}{"1.0"}, supported)
	assert.Empty(t, c.session, "a rejected handshake binds no session")

	// An empty version negotiates the newest supported one.
	_, env = c.post(`{"jsonrpc":"2.0","id":2,"method":"initialize","params":{}}`)
	require.Nil(t, env["error"])
	assert.Equal(t, "1.0", env["result"].(map[string]interface{})["protocolVersion"])
}

func TestConformance_JSONRPCFormat(t *testing.T) {
	c := setupServer(t)

	tests := []struct {
		name string
		body string
		code int
		kind protocol.Kind
		id   interface{}
	}{
		{"malformed json", `{"jsonrpc":"2.0","id":1,`, protocol.ParseError, protocol.KindParseError, nil},
		{"wrong version", `{"jsonrpc":"1.0","id":7,"method":"ping"}`, protocol.InvalidRequest, protocol.KindInvalidRequest, float64(7)},
		{"missing method", `{"jsonrpc":"2.0","id":"abc"}`, protocol.InvalidRequest, protocol.KindInvalidRequest, "abc"},
		{"unknown method", `{"jsonrpc":"2.0","id":3,"method":"tools/destroy"}`, protocol.MethodNotFound, protocol.KindUnknownMethod, float64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := c.post(tt.body)
			assert.Equal(t, http.StatusOK, status)
			code, kind := errorOf(t, env)
			assert.Equal(t, float64(tt.code), code)
			assert.Equal(t, string(tt.kind), kind)
			assert.Equal(t, tt.id, env["id"])
		})
	}
}

func TestConformance_Notifications(t *testing.T) {
	c := setupServer(t)
	c.initialize()

	status, env := c.post(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Nil(t, env)

	// Unknown notifications are dropped silently.
	status, env = c.post(`{"jsonrpc":"2.0","method":"notifications/unheard-of"}`)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Nil(t, env)
}

func TestConformance_SessionEnforcement(t *testing.T) {
	c := setupServer(t)

	// ping needs no session.
	_, env := c.post(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, map[string]interface{}{}, env["result"])

	_, env = c.post(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	code, kind := errorOf(t, env)
	assert.Equal(t, float64(protocol.NotInitializedCode), code)
	assert.Equal(t, string(protocol.KindNotInitialized), kind)

	c.session = "00000000-0000-0000-0000-000000000000"
	_, env = c.post(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	code, kind = errorOf(t, env)
	assert.Equal(t, float64(protocol.UnknownSessionCode), code)
	assert.Equal(t, string(protocol.KindUnknownSession), kind)
}

func TestConformance_Reinitialize(t *testing.T) {
	c := setupServer(t)
	first := c.initialize()

	_, env := c.post(`{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"1.0"}}`)
	code, _ := errorOf(t, env)
	assert.Equal(t, float64(protocol.InvalidRequest), code)

	// The original session still works.
	_, env = c.post(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	require.Nil(t, env["error"])
	assert.Equal(t, first["sessionId"], c.session)
}

func TestConformance_ClosedSession(t *testing.T) {
	c := setupServer(t)
	c.initialize()

	req, err := http.NewRequest(http.MethodDelete, c.endpoint, nil)
	require.NoError(t, err)
	req.Header.Set(transport.HeaderSessionID, c.session)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, env := c.post(`{"jsonrpc":"2.0","id":2,"method":"tools/execute","params":{"name":"calculator:add","arguments":{"a":1,"b":2}}}`)
	_, kind := errorOf(t, env)
	assert.Equal(t, string(protocol.KindUnknownSession), kind)
}

func TestConformance_ToolsLifecycle(t *testing.T) {
	c := setupServer(t)
	c.initialize()

	_, env := c.post(`{"jsonrpc":"2.0","id":"list","method":"tools/list"}`)
	assert.Equal(t, "list", env["id"])
	tools := env["result"].(map[string]interface{})["tools"].([]interface{})
	require.Len(t, tools, 4)

	names := make([]string, 0, len(tools))
	for _, raw := range tools {
		tool := raw.(map[string]interface{})
		names = append(names, tool["name"].(string))
		params := tool["parameters"].([]interface{})
		require.Len(t, params, 2)
		assert.Equal(t, map[string]interface{}{
			"name": "a", "type": "number", "description": "First number", "required": true,
		}, params[0])
		assert.Contains(t, tool, "inputSchema")
	}
	assert.Equal(t, []string{"calculator:add", "calculator:subtract", "calculator:multiply", "calculator:divide"}, names)

	_, env = c.post(`{"jsonrpc":"2.0","id":2,"method":"tools/execute","params":{"name":"calculator:add","arguments":{"a":145,"b":237}}}`)
	require.Nil(t, env["error"])
	assert.Equal(t, map[string]interface{}{"result": float64(382)}, env["result"])
}

func TestConformance_ErrorHandling(t *testing.T) {
	c := setupServer(t)
	c.initialize()

	tests := []struct {
		name    string
		params  string
		code    int
		kind    protocol.Kind
		param   string
		message string
	}{
		{"unknown tool", `{"name":"calculator:power","arguments":{"a":2,"b":8}}`, protocol.UnknownToolCode, protocol.KindUnknownTool, "", ""},
		{"missing argument", `{"name":"calculator:add","arguments":{"a":1}}`, protocol.InvalidParams, protocol.KindInvalidArguments, "b", ""},
		{"wrong type", `{"name":"calculator:add","arguments":{"a":"one","b":2}}`, protocol.InvalidParams, protocol.KindInvalidArguments, "a", ""},
		{"extra argument", `{"name":"calculator:add","arguments":{"a":1,"b":2,"c":3}}`, protocol.InvalidParams, protocol.KindInvalidArguments, "c", ""},
		{"handler failure", `{"name":"calculator:divide","arguments":{"a":10,"b":0}}`, protocol.HandlerErrorCode, protocol.KindHandlerError, "", "Cannot divide by zero"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"jsonrpc":"2.0","id":` + strconv.Itoa(10+i) + `,"method":"tools/execute","params":` + tt.params + `}`
			_, env := c.post(body)
			code, kind := errorOf(t, env)
			assert.Equal(t, float64(tt.code), code)
			assert.Equal(t, string(tt.kind), kind)
			e := env["error"].(map[string]interface{})
			if tt.param != "" {
				assert.Equal(t, tt.param, e["data"].(map[string]interface{})["param"])
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, e["message"])
			}
		})
	}

	// The session survives every failure.
	_, env := c.post(`{"jsonrpc":"2.0","id":99,"method":"tools/execute","params":{"name":"calculator:divide","arguments":{"a":10,"b":4}}}`)
	require.Nil(t, env["error"])
	assert.Equal(t, map[string]interface{}{"result": 2.5}, env["result"])
}

func TestConformance_ConcurrentRequests(t *testing.T) {
	c := setupServer(t)
	c.initialize()

	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      i,
				"method":  "tools/execute",
				"params":  map[string]interface{}{"name": "calculator:multiply", "arguments": map[string]interface{}{"a": i, "b": 2}},
			})
			req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, c.endpoint, bytes.NewReader(body))
			req.Header.Set(transport.HeaderSessionID, c.session)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				errs <- err.Error()
				return
			}
			defer resp.Body.Close()
			var env struct {
				ID     int `json:"id"`
				Result struct {
					Result float64 `json:"result"`
				} `json:"result"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
				errs <- err.Error()
				return
			}
			if env.ID != i || env.Result.Result != float64(i*2) {
				errs <- "mismatched response"
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
