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
// Package llm defines the contract between the agent loop and a
// text-generation backend, plus the shared rate limiter.
package llm

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation entry.
type Message struct {
	Role    string
	Content string
}

// Backend produces text for a conversation. Implementations do their own
// transport-level retries; callers do not retry.
type Backend interface {
	// Complete returns the generated reply for messages.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}

// Backend failure classes.
var (
	// ErrBackendUnavailable: the backend could not be reached or is
	// overloaded (network failure, 5xx, 429).
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendError: the backend rejected the request or returned
	// nothing usable.
	ErrBackendError = errors.New("backend error")
)

// ClassifyStatus marks err by HTTP status. A zero status means the request
// never got a response.
func ClassifyStatus(status int, err error) error {
	switch {
	case status == 0, status == http.StatusTooManyRequests, status >= 500:
		return errors.Mark(err, ErrBackendUnavailable)
	default:
		return errors.Mark(err, ErrBackendError)
	}
}

// SplitSystem separates the leading system messages from the rest of the
// conversation for APIs that take the system prompt out of band. Later
// system messages (tool results, failure notices) keep their position as
// user turns, and adjacent turns of the same role are merged so the result
// alternates.
func SplitSystem(messages []Message) (system []string, rest []Message) {
	i := 0
	for ; i < len(messages) && messages[i].Role == RoleSystem; i++ {
		system = append(system, messages[i].Content)
	}
	for _, m := range messages[i:] {
		if m.Role == RoleSystem {
			m.Role = RoleUser
		}
		if n := len(rest); n > 0 && rest[n-1].Role == m.Role {
			rest[n-1].Content += "\n\n" + m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
