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
package transport

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// SessionID holds the session id a client transport echoes to the server.
// Session ids consist only of visible ASCII characters (0x21 to 0x7E) so
// they are safe in an HTTP header.
type SessionID struct {
	id string
	mu sync.RWMutex
}

// Set stores the id negotiated by initialize.
func (s *SessionID) Set(id string) error {
	for _, c := range id {
		if c < 0x21 || c > 0x7E {
			return errors.New("invalid session ID: contains non-ASCII or invisible characters")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

// Get returns the current session id.
func (s *SessionID) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Clear forgets the session id.
func (s *SessionID) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
}
