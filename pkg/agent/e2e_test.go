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
package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/toolbridge/pkg/mcp/client"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
	"github.com/teradata-labs/toolbridge/pkg/tools/calculator"
	"go.uber.org/zap/zaptest"
)

// countingTools wraps the real client so tests can assert how many
// executions reached the server.
type countingTools struct {
	*client.Client
	executes int
}

func (c *countingTools) Invoke(ctx context.Context, name string, args map[string]interface{}) (json.RawMessage, error) {
	c.executes++
	return c.Client.Invoke(ctx, name, args)
}

type calculatorStack struct {
	client *client.Client
	sse    *transport.SSEServer
}

func startCalculatorStack(t *testing.T) *calculatorStack {
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
	mux := http.NewServeMux()
	mux.Handle("/sse", sse.StreamHandler())
	mux.Handle(transport.DefaultMessagesPath, sse.MessagesHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	t.Cleanup(sse.Close)

	tr, err := transport.NewSSETransport(transport.SSEConfig{Endpoint: ts.URL, Logger: logger})
	require.NoError(t, err)
	c, err := client.NewClient(client.Config{Transport: tr, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	_, err = c.Initialize(ctx)
	require.NoError(t, err)
	return &calculatorStack{client: c, sse: sse}
}

func TestEndToEnd(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		replies  []string
		answer   string
		executes int
		contains string
	}{
		{
			name:  "addition",
			query: "What is 145 plus 237?",
			replies: []string{
				fenced("calculator:add", `{"a": 145, "b": 237}`),
				"145 plus 237 equals 382.",
			},
			answer:   "145 plus 237 equals 382.",
			executes: 1,
		},
		{
			name:  "subtraction",
			query: "Subtract 50 from 100",
			replies: []string{
				fenced("calculator:subtract", `{"a": 100, "b": 50}`),
				"100 minus 50 is 50.",
			},
			answer:   "100 minus 50 is 50.",
			executes: 1,
		},
		{
			name:     "no tool needed",
			query:    "What's the weather today?",
			replies:  []string{"I don't have a weather tool, so I can't tell you."},
			answer:   "I don't have a weather tool, so I can't tell you.",
			executes: 0,
		},
		{
			name:  "division by zero",
			query: "Divide 10 by 0",
			replies: []string{
				fenced("calculator:divide", `{"a": 10, "b": 0}`),
				"Division by zero is undefined.",
			},
			executes: 1,
			contains: "Cannot divide by zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := startCalculatorStack(t)
			tools := &countingTools{Client: stack.client}
			backend := &scriptedBackend{replies: tt.replies}

			a, err := New(Config{Backend: backend, Tools: tools, Logger: zaptest.NewLogger(t)})
			require.NoError(t, err)
			require.NoError(t, a.Start(context.Background()))
			assert.Len(t, a.Catalog(), 4)

			answer, err := a.Ask(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.executes, tools.executes)
			if tt.answer != "" {
				assert.Equal(t, tt.answer, answer.Text)
			}
			if tt.contains != "" {
				assert.Contains(t, answer.Text, tt.contains)
				assert.NotContains(t, answer.Text, "JSON-RPC")
			}

			// The session survives every scenario, including tool failures.
			raw, err := stack.client.Invoke(context.Background(), "calculator:multiply", map[string]interface{}{"a": 6, "b": 7})
			require.NoError(t, err)
			assert.JSONEq(t, `42`, string(raw))
		})
	}
}

func TestEndToEnd_ChainedRounds(t *testing.T) {
	stack := startCalculatorStack(t)
	tools := &countingTools{Client: stack.client}
	backend := &scriptedBackend{replies: []string{
		fenced("calculator:add", `{"a": 5, "b": 10}`),
		fenced("calculator:subtract", `{"a": 15, "b": 3}`),
		"The result of 5+10-3 is 12.",
	}}

	a, err := New(Config{Backend: backend, Tools: tools, MaxToolRounds: 3, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	assert.Contains(t, a.SystemPrompt(), "multi-step")

	answer, err := a.Ask(context.Background(), "What is 5+10-3?")
	require.NoError(t, err)
	assert.Equal(t, "The result of 5+10-3 is 12.", answer.Text)
	require.Len(t, answer.Invocations, 2)
	assert.JSONEq(t, `15`, string(answer.Invocations[0].Result))
	assert.JSONEq(t, `12`, string(answer.Invocations[1].Result))
	assert.Equal(t, 2, tools.executes)
}

func TestEndToEnd_ServerGone(t *testing.T) {
	stack := startCalculatorStack(t)
	backend := &scriptedBackend{replies: []string{
		fenced("calculator:add", `{"a": 1, "b": 2}`),
		"I could not reach the calculator.",
	}}

	a, err := New(Config{Backend: backend, Tools: stack.client, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	stack.sse.Close()
	require.Eventually(t, func() bool { return stack.client.State() == client.StateClosed }, 2*time.Second, 10*time.Millisecond)

	answer, err := a.Ask(context.Background(), "1+2")
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "(Tool 'calculator:add' could not run: the connection to the tool server was lost.)")
}
