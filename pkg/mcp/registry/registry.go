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

// Package registry holds the set of tools a server exposes: their
// definitions, compiled argument schemas and handlers.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// Handler implements a tool. It is only called with arguments that passed
// validation against the tool's declared parameters.
type Handler func(ctx context.Context, args Arguments) (interface{}, error)

// Definition describes a tool at registration time.
type Definition struct {
	Name        string
	Description string
	Parameters  []protocol.Parameter
	Returns     *protocol.Parameter
}

type entry struct {
	tool    protocol.Tool
	schema  *gojsonschema.Schema
	handler Handler
}

// ErrSealed is returned by Register once the registry has been sealed.
var ErrSealed = errors.New("registry is sealed")

// Registry maps tool names to definitions and handlers. Registration order
// is preserved for listing.
type Registry struct {
	mu     sync.RWMutex
	tools  *orderedmap.OrderedMap[string, *entry]
	sealed bool
	logger *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  orderedmap.New[string, *entry](),
		logger: logger,
	}
}

// Register adds a tool. It fails with a DuplicateTool error if the name is
// already taken.
func (r *Registry) Register(def Definition, handler Handler) error {
	if def.Name == "" {
		return errors.New("tool name is required")
	}
	if handler == nil {
		return errors.Newf("tool %s: handler is required", def.Name)
	}
	seen := make(map[string]bool, len(def.Parameters))
	for _, p := range def.Parameters {
		if p.Name == "" {
			return errors.Newf("tool %s: parameter name is required", def.Name)
		}
		if seen[p.Name] {
			return errors.Newf("tool %s: parameter %s declared twice", def.Name, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			return errors.Newf("tool %s: parameter %s has unknown type %q", def.Name, p.Name, p.Type)
		}
	}

	raw, err := buildInputSchema(def.Parameters)
	if err != nil {
		return errors.Wrapf(err, "tool %s", def.Name)
	}
	schema, err := compileSchema(raw)
	if err != nil {
		return errors.Wrapf(err, "tool %s", def.Name)
	}

	params := make([]protocol.Parameter, len(def.Parameters))
	copy(params, def.Parameters)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errors.Wrapf(ErrSealed, "register %s", def.Name)
	}
	if _, exists := r.tools.Get(def.Name); exists {
		return protocol.NewKindErrorf(protocol.KindDuplicateTool, "tool %q is already registered", def.Name)
	}

	r.tools.Set(def.Name, &entry{
		tool: protocol.Tool{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  params,
			InputSchema: raw,
			Returns:     def.Returns,
		},
		schema:  schema,
		handler: handler,
	})
	r.logger.Debug("registered tool", zap.String("tool", def.Name), zap.Int("parameters", len(params)))
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// startup code registering a fixed tool set.
func (r *Registry) MustRegister(def Definition, handler Handler) {
	if err := r.Register(def, handler); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only. Servers seal it before accepting
// connections.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Len()
}

// List returns every tool definition in registration order.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]protocol.Tool, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		tools = append(tools, pair.Value.tool)
	}
	return tools
}

// Invoke validates args and runs the named tool's handler.
//
// Failures are always *protocol.Error values: UnknownTool when the name is
// not registered, InvalidArguments (naming the parameter) when validation
// fails, and HandlerError for anything the handler reports. A handler may
// return a *protocol.Error itself to pick a different kind.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (result interface{}, err error) {
	r.mu.RLock()
	e, ok := r.tools.Get(name)
	r.mu.RUnlock()
	if !ok {
		return nil, protocol.NewKindErrorf(protocol.KindUnknownTool, "unknown tool: %s", name)
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validateArguments(e, args); err != nil {
		r.logger.Debug("rejected tool arguments",
			zap.String("tool", name),
			zap.Any("arguments", args),
			zap.Error(err))
		return nil, err
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool handler panicked", zap.String("tool", name), zap.Any("panic", p))
			result = nil
			err = protocol.NewKindError(protocol.KindHandlerError, fmt.Sprintf("tool %s failed unexpectedly", name))
		}
	}()

	result, err = e.handler(ctx, Arguments(args))
	r.logger.Debug("tool executed",
		zap.String("tool", name),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("failed", err != nil))
	if err != nil {
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		return nil, protocol.NewKindError(protocol.KindHandlerError, err.Error())
	}
	return result, nil
}
