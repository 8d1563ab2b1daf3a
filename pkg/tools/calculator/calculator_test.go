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
package calculator

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/toolbridge/pkg/mcp/registry"
	"go.uber.org/zap/zaptest"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(zaptest.NewLogger(t))
	require.NoError(t, Register(reg, zaptest.NewLogger(t)))
	reg.Seal()
	return reg
}

func TestRegister_Catalog(t *testing.T) {
	tools := newRegistry(t).List()
	require.Len(t, tools, 4)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		require.Len(t, tool.Parameters, 2)
		assert.Equal(t, "a", tool.Parameters[0].Name)
		assert.Equal(t, "b", tool.Parameters[1].Name)
		assert.Equal(t, protocol.TypeNumber, tool.Parameters[0].Type)
		assert.True(t, tool.Parameters[0].Required)
		require.NotNil(t, tool.Returns)
		assert.Equal(t, protocol.TypeNumber, tool.Returns.Type)
	}
	assert.Equal(t, []string{"calculator:add", "calculator:subtract", "calculator:multiply", "calculator:divide"}, names)
}

func TestRegister_Twice(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, Register(reg, nil))
	err := Register(reg, nil)
	assert.Equal(t, protocol.KindDuplicateTool, protocol.KindOf(err))
}

func TestOperations(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		tool     string
		a, b     interface{}
		expected float64
	}{
		{"calculator:add", 145.0, 237.0, 382},
		{"calculator:add", 0.1, 0.2, 0.1 + 0.2},
		{"calculator:subtract", 100.0, 50.0, 50},
		{"calculator:subtract", 3, 10, -7},
		{"calculator:multiply", 6.0, 7.0, 42},
		{"calculator:divide", 10.0, 4.0, 2.5},
		{"calculator:divide", -9.0, 3.0, -3},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			result, err := reg.Invoke(context.Background(), tt.tool, map[string]interface{}{"a": tt.a, "b": tt.b})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDivideByZero(t *testing.T) {
	reg := newRegistry(t)

	_, err := reg.Invoke(context.Background(), "calculator:divide", map[string]interface{}{"a": 10.0, "b": 0.0})
	require.Error(t, err)

	var rpcErr *protocol.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, protocol.KindHandlerError, rpcErr.Kind())
	assert.Equal(t, "Cannot divide by zero", rpcErr.Message)

	_, err = operations[3].apply(10, 0)
	assert.True(t, errors.Is(err, ErrDivideByZero))
	assert.Equal(t, "cannot divide by zero", err.Error())
}

func TestInvalidOperands(t *testing.T) {
	reg := newRegistry(t)

	_, err := reg.Invoke(context.Background(), "calculator:add", map[string]interface{}{"a": "one", "b": 2.0})
	require.Error(t, err)
	var rpcErr *protocol.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, protocol.KindInvalidArguments, rpcErr.Kind())
	assert.Equal(t, "a", rpcErr.Details().Param)
}
