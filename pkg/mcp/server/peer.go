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
package server

import (
	"context"
	"sync"
)

// Peer is the server's view of one client connection. It carries the
// session bound by a successful initialize; every later request on the
// same connection is evaluated against that session.
type Peer struct {
	mu        sync.Mutex
	sessionID string
	onBind    func(sessionID string)
}

// NewPeer creates an unbound peer. onBind, if set, runs once when
// initialize binds a session to the peer.
func NewPeer(onBind func(sessionID string)) *Peer {
	return &Peer{onBind: onBind}
}

// NewBoundPeer creates a peer already bound to sessionID.
func NewBoundPeer(sessionID string) *Peer {
	return &Peer{sessionID: sessionID}
}

// SessionID returns the bound session id, or "" before initialize.
func (p *Peer) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// bind records the session. It reports false if the peer was already bound.
func (p *Peer) bind(sessionID string) bool {
	p.mu.Lock()
	if p.sessionID != "" {
		p.mu.Unlock()
		return false
	}
	p.sessionID = sessionID
	onBind := p.onBind
	p.mu.Unlock()

	if onBind != nil {
		onBind(sessionID)
	}
	return true
}

type claimedSessionKey struct{}

// WithClaimedSession attaches the session id a client sent explicitly
// (for example in the Mcp-Session-Id header). The dispatcher rejects a
// request whose claim differs from the peer's bound session.
func WithClaimedSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, claimedSessionKey{}, sessionID)
}

// ClaimedSession returns the explicit session claim carried by ctx.
func ClaimedSession(ctx context.Context) string {
	id, _ := ctx.Value(claimedSessionKey{}).(string)
	return id
}
