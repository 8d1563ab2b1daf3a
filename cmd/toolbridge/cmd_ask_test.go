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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/toolbridge/pkg/agent"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
	"github.com/teradata-labs/toolbridge/pkg/tools/calculator"
	"go.uber.org/zap/zaptest"
)

type fakeAsker struct {
	queries []string
	err     error
}

func (f *fakeAsker) Ask(ctx context.Context, query string) (*agent.Answer, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Answer{Text: "echo: " + query}, nil
}

func TestREPL(t *testing.T) {
	ag := &fakeAsker{}
	var out, status bytes.Buffer
	in := strings.NewReader("What is 2+2?\n\n  \nSubtract 1 from 3\nQUIT\nnever reached\n")

	require.NoError(t, repl(context.Background(), ag, in, &out, &status))
	assert.Equal(t, []string{"What is 2+2?", "Subtract 1 from 3"}, ag.queries)
	assert.Contains(t, out.String(), "Type 'exit' to quit.")
	assert.Contains(t, out.String(), "Assistant: echo: What is 2+2?")
	assert.Contains(t, out.String(), "Assistant: echo: Subtract 1 from 3")
}

func TestREPL_EOFAndErrors(t *testing.T) {
	ag := &fakeAsker{err: errors.New("deepseek backend: 503")}
	var out, status bytes.Buffer

	require.NoError(t, repl(context.Background(), ag, strings.NewReader("one\ntwo"), &out, &status))
	assert.Equal(t, []string{"one", "two"}, ag.queries, "a failed query does not end the session")
	assert.Contains(t, status.String(), "Error: deepseek backend: 503")
}

// fakeChatServer answers OpenAI-style chat completions from a script and
// records every request body.
type fakeChatServer struct {
	mu      sync.Mutex
	replies []string
	bodies  []string
}

func (f *fakeChatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(body))
	i := len(f.bodies) - 1
	f.mu.Unlock()

	if i >= len(f.replies) {
		http.Error(w, `{"error":{"message":"script exhausted"}}`, http.StatusBadRequest)
		return
	}
	resp := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "deepseek-chat",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]interface{}{"role": "assistant", "content": f.replies[i]},
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func startToolServer(t *testing.T) *httptest.Server {
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
	sse, err := transport.NewSSEServer(transport.SSEServerConfig{Server: srv, KeepAlive: -1, Logger: logger})
	require.NoError(t, err)
	direct, err := transport.NewDirectServer(transport.DirectServerConfig{Server: srv, Logger: logger})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.StreamHandler())
	mux.Handle(transport.DefaultMessagesPath, sse.MessagesHandler())
	mux.Handle("/mcp", direct)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	t.Cleanup(sse.Close)
	return ts
}

func TestAskCommand_EndToEnd(t *testing.T) {
	t.Chdir(t.TempDir())
	tools := startToolServer(t)

	for _, tr := range []string{TransportSSE, TransportDirect} {
		t.Run(tr, func(t *testing.T) {
			chat := &fakeChatServer{replies: []string{
				"I'll add those.\n```json\n{\"tool\": \"calculator:add\", \"parameters\": {\"a\": 145, \"b\": 237}}\n```",
				"145 plus 237 equals 382.",
			}}
			llmServer := httptest.NewServer(chat)
			t.Cleanup(llmServer.Close)
			t.Setenv("TOOLBRIDGE_LLM_BASE_URL", llmServer.URL)

			out, err := runCmd(t, "",
				"ask", "-i", "What is 145 plus 237?",
				"--server", tools.URL,
				"--transport", tr,
				"--api-key", "sk-test")
			require.NoError(t, err, out)
			assert.Contains(t, out, "Connected to server: MCP Calculator Server")
			assert.Contains(t, out, "Discovered 4 tools")
			assert.Contains(t, out, "Assistant: 145 plus 237 equals 382.")

			require.Len(t, chat.bodies, 2)
			assert.Contains(t, chat.bodies[0], "calculator:subtract")
			assert.Contains(t, chat.bodies[1], "Tool result: 382")
		})
	}
}

func TestAskCommand_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := runCmd(t, "", "ask")
	assert.ErrorContains(t, err, "a question is required")

	tools := startToolServer(t)
	_, err = runCmd(t, "", "ask", "hello", "--server", tools.URL, "--llm-provider", "gemini", "--api-key", "x")
	assert.ErrorContains(t, err, "unknown LLM provider")

	_, err = runCmd(t, "", "ask", "hello", "--server", "http://127.0.0.1:1", "--api-key", "x")
	assert.ErrorContains(t, err, "connect to tool server")
}
