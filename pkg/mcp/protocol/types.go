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

package protocol

import "encoding/json"

// ProtocolVersion is the newest protocol version this module speaks.
const ProtocolVersion = "1.0"

// SupportedVersions lists every protocol version the server accepts,
// newest first.
var SupportedVersions = []string{ProtocolVersion}

// Implementation describes a client or server implementation.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities is the negotiated capability set of a session.
type Capabilities struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
}

// InitializeParams contains the initialize request parameters
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      Implementation `json:"clientInfo"`
	Capabilities    Capabilities   `json:"capabilities"`
}

// InitializeResult contains the initialize response
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	SessionID       string         `json:"sessionId"`
	ServerInfo      Implementation `json:"serverInfo"`
	Capabilities    Capabilities   `json:"capabilities"`
}

// ParamType is the semantic type of a tool parameter.
type ParamType string

// Supported parameter types. They map one to one onto JSON Schema types.
const (
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// Valid reports whether t is a known parameter type.
func (t ParamType) Valid() bool {
	switch t {
	case TypeNumber, TypeInteger, TypeString, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// Parameter describes one named tool parameter.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// Tool represents a tool exposed by a server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  []Parameter     `json:"parameters"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	Returns     *Parameter      `json:"returns,omitempty"`
}

// ToolListResult contains the tools/list response
type ToolListResult struct {
	Tools []Tool `json:"tools"`
}

// ExecuteToolParams contains the tools/execute request parameters
type ExecuteToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ExecuteToolResult contains the tools/execute response
type ExecuteToolResult struct {
	Result json.RawMessage `json:"result"`
}
