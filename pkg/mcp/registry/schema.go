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

package registry

import (
	"encoding/json"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// buildInputSchema renders the declared parameter list as a JSON Schema
// object. Property order follows declaration order and undeclared
// properties are rejected.
func buildInputSchema(params []protocol.Parameter) (json.RawMessage, error) {
	props := jsonschema.NewProperties()
	var required []string
	for _, p := range params {
		props.Set(p.Name, &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
		})
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "marshal input schema")
	}
	return raw, nil
}

// compileSchema loads a schema once so every invocation reuses it.
func compileSchema(raw json.RawMessage) (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "compile input schema")
	}
	return schema, nil
}

// validateArguments checks args against the tool's compiled schema and maps
// the first violation onto an InvalidArguments failure naming the parameter.
// Violations are reported in declaration order so the same bad input always
// names the same parameter.
func validateArguments(e *entry, args map[string]interface{}) error {
	for _, p := range e.tool.Parameters {
		if _, ok := args[p.Name]; p.Required && !ok {
			return protocol.InvalidArgumentsError(p.Name,
				"missing required parameter '"+p.Name+"'")
		}
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return protocol.NewKindErrorf(protocol.KindInvalidArguments, "arguments are not valid JSON: %v", err)
	}
	if result.Valid() {
		return nil
	}

	bad := make(map[string]string)
	for _, re := range result.Errors() {
		param := re.Field()
		switch re.Type() {
		case "required", "additional_property_not_allowed":
			if p, ok := re.Details()["property"].(string); ok {
				param = p
			}
		}
		if _, seen := bad[param]; !seen {
			bad[param] = re.Type() + ": " + re.Description()
		}
	}

	for _, p := range e.tool.Parameters {
		if msg, ok := bad[p.Name]; ok {
			return protocol.InvalidArgumentsError(p.Name,
				"invalid parameter '"+p.Name+"' ("+msg+")")
		}
	}

	// Whatever is left names a parameter the tool never declared.
	names := make([]string, 0, len(bad))
	for name := range bad {
		names = append(names, name)
	}
	sort.Strings(names)
	return protocol.InvalidArgumentsError(names[0],
		"unknown parameter '"+names[0]+"'")
}
