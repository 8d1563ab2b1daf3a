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
package client

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"go.uber.org/zap"
)

// ListTools fetches the server's tool catalog, caches it and moves the client
// to Ready. It may be called again to refresh the cache.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	if err := c.require(StateInitialized, StateReady); err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, protocol.MethodToolsList, struct{}{})
	if err != nil {
		return nil, err
	}

	var result protocol.ToolListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, errors.Wrap(err, "failed to parse tools/list result")
	}

	c.toolsMu.Lock()
	c.tools = append([]protocol.Tool(nil), result.Tools...)
	c.toolsMu.Unlock()

	c.mu.Lock()
	if c.state == StateInitialized {
		c.state = StateReady
	}
	c.mu.Unlock()

	c.logger.Debug("discovered tools", zap.Int("count", len(result.Tools)))
	return result.Tools, nil
}

// Tools returns the catalog cached by the last ListTools.
func (c *Client) Tools() []protocol.Tool {
	c.toolsMu.RLock()
	defer c.toolsMu.RUnlock()
	return append([]protocol.Tool(nil), c.tools...)
}

// Invoke executes a tool and returns its raw JSON result. Server-side
// failures come back as a *protocol.Error; use protocol.KindOf to classify
// them.
func (c *Client) Invoke(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	if err := c.require(StateReady); err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, protocol.MethodToolExecute, protocol.ExecuteToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, err
	}

	var result protocol.ExecuteToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, errors.Wrap(err, "failed to parse tools/execute result")
	}
	return result.Result, nil
}
