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

	"github.com/cockroachdb/errors"
)

// Failure classes of the client. Richer errors are marked with one of these
// so errors.Is matches both the class and the underlying cause.
var (
	// ErrConnection reports a network failure establishing or using the
	// transport. The caller may retry with a new client.
	ErrConnection = errors.New("connection error")

	// ErrHandshake reports a failed or uncorrelated initialize.
	ErrHandshake = errors.New("handshake failed")

	// ErrNotReady reports an operation called out of lifecycle order.
	ErrNotReady = errors.New("client not ready")

	// ErrClosed reports an operation on a closed client.
	ErrClosed = errors.New("client closed")

	// ErrTimeout reports a request that got no response within the
	// bounded wait.
	ErrTimeout = errors.New("request timed out")

	// ErrCancelled reports a request abandoned because the connection
	// closed or the caller cancelled it.
	ErrCancelled = errors.New("request cancelled")
)

// contextFailure classifies a finished context: an expired deadline is a
// timeout, anything else a cancellation.
func contextFailure(ctx context.Context, method string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(errors.Wrapf(err, "%s", method), ErrTimeout)
	}
	return errors.Mark(errors.Wrapf(err, "%s", method), ErrCancelled)
}
