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
// Package transport carries protocol messages between the agent-side client
// and the server. The server side exposes a long-lived SSE push stream plus
// a request endpoint, and a direct JSON endpoint. The client side hides the
// two channels behind a single Transport.
package transport

import (
	"context"

	"github.com/cockroachdb/errors"
)

// HeaderSessionID carries the negotiated session id on HTTP requests.
const HeaderSessionID = "Mcp-Session-Id"

// maxBodySize caps a single request body.
const maxBodySize = 10 * 1024 * 1024

var (
	// ErrTransportClosed is returned by every operation after Close.
	ErrTransportClosed = errors.New("transport closed")

	// ErrNotConnected is returned by Send before Connect succeeds.
	ErrNotConnected = errors.New("transport not connected")

	// ErrSessionExpired indicates the server no longer knows the
	// connection or session (HTTP 404).
	ErrSessionExpired = errors.New("session expired")
)

// Transport is the client side of a connection to a tool server.
type Transport interface {
	// Connect establishes the push stream. It returns once the server
	// side is ready to accept requests.
	Connect(ctx context.Context) error

	// Send submits one encoded request.
	Send(ctx context.Context, message []byte) error

	// Receive returns the next message from the push stream (blocking).
	// It fails once the stream ends, after Close, or when ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// SessionAware is implemented by transports that attach the negotiated
// session id to every request.
type SessionAware interface {
	SetSessionID(id string) error
}
