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
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/mcp/client"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
)

// errorMessage prefers the server's message over the wrapped chain.
func errorMessage(err error) string {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Message
	}
	return err.Error()
}

// FailureNotice is the user-visible explanation of a failed invocation.
func FailureNotice(tool string, err error) string {
	switch protocol.KindOf(err) {
	case protocol.KindHandlerError:
		return fmt.Sprintf("(Tool '%s' failed: %s)", tool, errorMessage(err))
	case protocol.KindInvalidArguments:
		return fmt.Sprintf("(Tool '%s' rejected its arguments: %s)", tool, errorMessage(err))
	case protocol.KindUnknownTool:
		return fmt.Sprintf("(Tool '%s' is not available on the server.)", tool)
	case protocol.KindNotInitialized, protocol.KindUnknownSession:
		return fmt.Sprintf("(Tool '%s' could not run: the tool server session is no longer valid.)", tool)
	case "":
	default:
		return fmt.Sprintf("(Tool '%s' failed: %s)", tool, errorMessage(err))
	}

	switch {
	case errors.Is(err, client.ErrTimeout):
		return fmt.Sprintf("(Tool '%s' did not respond in time.)", tool)
	case errors.Is(err, client.ErrCancelled), errors.Is(err, client.ErrClosed), errors.Is(err, client.ErrConnection):
		return fmt.Sprintf("(Tool '%s' could not run: the connection to the tool server was lost.)", tool)
	case errors.Is(err, client.ErrNotReady):
		return fmt.Sprintf("(Tool '%s' could not run: the tool server is not ready.)", tool)
	default:
		return fmt.Sprintf("(Tool '%s' failed: %s)", tool, err.Error())
	}
}
