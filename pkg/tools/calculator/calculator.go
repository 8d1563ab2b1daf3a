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
// Package calculator provides the arithmetic tools served by the tool
// server: calculator:add, calculator:subtract, calculator:multiply and
// calculator:divide. Each takes two numbers, a and b.
package calculator

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"go.uber.org/zap"
)

// Namespace prefixes every calculator tool name.
const Namespace = "calculator"

// ErrDivideByZero is returned by divide for a zero divisor.
var ErrDivideByZero = errors.New("cannot divide by zero")

// divideByZeroMessage is the HandlerError message clients see.
const divideByZeroMessage = "Cannot divide by zero"

type operation struct {
	name        string
	description string
	apply       func(a, b float64) (float64, error)
}

var operations = []operation{
	{
		name:        "add",
		description: "Add two numbers together",
		apply:       func(a, b float64) (float64, error) { return a + b, nil },
	},
	{
		name:        "subtract",
		description: "Subtract the second number from the first",
		apply:       func(a, b float64) (float64, error) { return a - b, nil },
	},
	{
		name:        "multiply",
		description: "Multiply two numbers",
		apply:       func(a, b float64) (float64, error) { return a * b, nil },
	},
	{
		name:        "divide",
		description: "Divide the first number by the second",
		apply: func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, ErrDivideByZero
			}
			return a / b, nil
		},
	},
}

func operands() []protocol.Parameter {
	return []protocol.Parameter{
		{Name: "a", Type: protocol.TypeNumber, Description: "First number", Required: true},
		{Name: "b", Type: protocol.TypeNumber, Description: "Second number", Required: true},
	}
}

// Register adds every calculator tool to reg in a fixed order.
func Register(reg *registry.Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, op := range operations {
		op := op
		def := registry.Definition{
			Name:        Namespace + ":" + op.name,
			Description: op.description,
			Parameters:  operands(),
			Returns:     &protocol.Parameter{Name: "result", Type: protocol.TypeNumber, Description: "The calculation result"},
		}
		if err := reg.Register(def, handler(def.Name, op, logger)); err != nil {
			return err
		}
	}
	return nil
}

func handler(name string, op operation, logger *zap.Logger) registry.Handler {
	return func(ctx context.Context, args registry.Arguments) (interface{}, error) {
		a, err := args.Float("a")
		if err != nil {
			return nil, err
		}
		b, err := args.Float("b")
		if err != nil {
			return nil, err
		}
		result, err := op.apply(a, b)
		if errors.Is(err, ErrDivideByZero) {
			return nil, protocol.NewKindError(protocol.KindHandlerError, divideByZeroMessage)
		}
		if err != nil {
			return nil, err
		}
		logger.Debug("calculated",
			zap.String("tool", name),
			zap.Float64("a", a),
			zap.Float64("b", b),
			zap.Float64("result", result))
		return result, nil
	}
}
