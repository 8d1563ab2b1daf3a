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
// Package agent implements the agent loop: it prompts a text-generation
// backend with the tool catalog discovered from a tool server, decodes tool
// invocations from the replies, runs them through the protocol client and
// folds the results back into the conversation.
package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/llm"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"go.uber.org/zap"
)

// DefaultMaxToolRounds allows one tool invocation per query followed by a
// single re-query for the final answer.
const DefaultMaxToolRounds = 1

// ToolClient is the part of the protocol client the agent uses.
type ToolClient interface {
	ListTools(ctx context.Context) ([]protocol.Tool, error)
	Invoke(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error)
}

// ErrNotStarted is returned by Ask before Start has discovered the tools.
var ErrNotStarted = errors.New("agent not started")

// Config configures an Agent.
type Config struct {
	Backend llm.Backend
	Tools   ToolClient

	// MaxToolRounds bounds tool invocations per query. Default: 1.
	MaxToolRounds int

	Logger *zap.Logger
}

// Agent runs queries against a backend with access to remote tools.
type Agent struct {
	backend   llm.Backend
	tools     ToolClient
	maxRounds int
	logger    *zap.Logger

	mu      sync.RWMutex
	catalog []protocol.Tool
	known   map[string]bool
	prompt  string
}

// Invocation records one tool call made while answering a query.
type Invocation struct {
	Tool      string
	Arguments map[string]interface{}
	Result    json.RawMessage
	Err       error
	Duration  time.Duration
}

// Answer is the outcome of a query.
type Answer struct {
	Text        string
	Invocations []Invocation
}

// New creates an agent. Call Start before Ask.
func New(cfg Config) (*Agent, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("tool client is required")
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Agent{
		backend:   cfg.Backend,
		tools:     cfg.Tools,
		maxRounds: cfg.MaxToolRounds,
		logger:    cfg.Logger,
	}, nil
}

// Start discovers the tool catalog and builds the system prompt. The
// catalog is cached for the agent's lifetime.
func (a *Agent) Start(ctx context.Context) error {
	tools, err := a.tools.ListTools(ctx)
	if err != nil {
		return errors.Wrap(err, "discover tools")
	}

	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}
	prompt := BuildSystemPrompt(tools, a.maxRounds)

	a.mu.Lock()
	a.catalog = tools
	a.known = known
	a.prompt = prompt
	a.mu.Unlock()

	a.logger.Info("agent ready",
		zap.Int("tools", len(tools)),
		zap.String("backend", a.backend.Name()),
		zap.String("model", a.backend.Model()))
	return nil
}

// Catalog returns the cached tool catalog.
func (a *Agent) Catalog() []protocol.Tool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]protocol.Tool(nil), a.catalog...)
}

// SystemPrompt returns the prompt built by Start.
func (a *Agent) SystemPrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prompt
}

// Ask answers one query. The conversation is discarded afterwards.
//
// A reply without a well-formed invocation, or naming a tool that is not in
// the catalog, is returned verbatim. A failed invocation is not an error:
// the backend is asked once more with the failure in the conversation and a
// notice describing the failure is appended to its answer. Errors are
// returned only when the backend itself fails.
func (a *Agent) Ask(ctx context.Context, query string) (*Answer, error) {
	a.mu.RLock()
	prompt, known := a.prompt, a.known
	a.mu.RUnlock()
	if known == nil {
		return nil, ErrNotStarted
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
		{Role: llm.RoleUser, Content: query},
	}
	answer := &Answer{}

	reply, err := a.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	for round := 0; ; round++ {
		call, ok := ParseToolCall(reply)
		if !ok {
			answer.Text = reply
			return answer, nil
		}
		if round >= a.maxRounds {
			a.logger.Debug("tool round limit reached", zap.Int("rounds", round), zap.String("tool", call.Tool))
			answer.Text = reply
			return answer, nil
		}
		if !known[call.Tool] {
			a.logger.Warn("model requested a tool that is not in the catalog", zap.String("tool", call.Tool))
			answer.Text = reply
			return answer, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
		inv := a.invoke(ctx, call)
		answer.Invocations = append(answer.Invocations, inv)

		if inv.Err != nil {
			messages = append(messages, llm.Message{
				Role:    llm.RoleSystem,
				Content: "Error executing tool '" + call.Tool + "': " + errorMessage(inv.Err),
			})
			notice := FailureNotice(call.Tool, inv.Err)

			final, err := a.complete(ctx, messages)
			if err != nil {
				a.logger.Warn("backend failed after tool error", zap.Error(err))
				answer.Text = notice
				return answer, nil
			}
			answer.Text = final + "\n\n" + notice
			return answer, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Tool result: " + formatResult(inv.Result)})
		reply, err = a.complete(ctx, messages)
		if err != nil {
			return nil, err
		}
	}
}

func (a *Agent) complete(ctx context.Context, messages []llm.Message) (string, error) {
	start := time.Now()
	reply, err := a.backend.Complete(ctx, messages)
	if err != nil {
		return "", errors.Wrapf(err, "%s backend", a.backend.Name())
	}
	a.logger.Debug("backend replied",
		zap.Int("messages", len(messages)),
		zap.Duration("duration", time.Since(start)))
	return reply, nil
}

func (a *Agent) invoke(ctx context.Context, call ToolCall) Invocation {
	start := time.Now()
	result, err := a.tools.Invoke(ctx, call.Tool, call.Parameters)
	inv := Invocation{
		Tool:      call.Tool,
		Arguments: call.Parameters,
		Result:    result,
		Err:       err,
		Duration:  time.Since(start),
	}
	if err != nil {
		a.logger.Warn("tool invocation failed",
			zap.String("tool", call.Tool),
			zap.String("kind", string(protocol.KindOf(err))),
			zap.Error(err))
	} else {
		a.logger.Info("tool executed",
			zap.String("tool", call.Tool),
			zap.ByteString("result", result),
			zap.Duration("duration", inv.Duration))
	}
	return inv
}

// formatResult renders a result for the conversation: strings unquoted,
// everything else as compact JSON.
func formatResult(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
