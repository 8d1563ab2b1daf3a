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
// Package server implements the request dispatcher of the tool protocol.
// It routes JSON-RPC requests to the session manager and the tool provider
// and encodes their outcome into response envelopes.
package server

import (
	"context"

	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
)

// ToolProvider supplies tools to the server. *registry.Registry is the
// production implementation.
type ToolProvider interface {
	// List returns all tools in a stable order.
	List() []protocol.Tool

	// Invoke validates args and runs a tool. Failures are *protocol.Error
	// values of kind UnknownTool, InvalidArguments or HandlerError.
	Invoke(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}
