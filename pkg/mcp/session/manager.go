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
// Package session tracks the sessions negotiated by initialize requests.
// Ids are random UUIDs and are never reused within a process.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"go.uber.org/zap"
)

// CloseReason records why a session ended.
type CloseReason string

// Close reasons.
const (
	ReasonClient    CloseReason = "client"
	ReasonTransport CloseReason = "transport"
	ReasonExpired   CloseReason = "expired"
	ReasonShutdown  CloseReason = "shutdown"
)

// Session is a snapshot of one negotiated session.
type Session struct {
	ID              string
	CreatedAt       time.Time
	LastActive      time.Time
	ProtocolVersion string
	Capabilities    protocol.Capabilities
	ClientInfo      protocol.Implementation
}

// Config configures a Manager.
type Config struct {
	// SupportedVersions lists accepted protocol versions, newest first.
	// Defaults to protocol.SupportedVersions.
	SupportedVersions []string

	// Capabilities is the static capability set granted to every session.
	Capabilities protocol.Capabilities

	// TTL is the idle time after which Expire closes a session. Zero
	// disables expiry.
	TTL time.Duration

	Logger *zap.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Manager owns the session table.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	onClose  []func(id string, reason CloseReason)

	versions     []string
	capabilities protocol.Capabilities
	ttl          time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewManager creates an empty session table.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if len(cfg.SupportedVersions) == 0 {
		cfg.SupportedVersions = protocol.SupportedVersions
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		versions:     cfg.SupportedVersions,
		capabilities: cfg.Capabilities,
		ttl:          cfg.TTL,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
}

// OnClose registers fn to run after any session is closed. Hooks run
// outside the table lock, in registration order.
func (m *Manager) OnClose(fn func(id string, reason CloseReason)) {
	m.mu.Lock()
	m.onClose = append(m.onClose, fn)
	m.mu.Unlock()
}

// Open negotiates a protocol version and allocates a new session. It fails
// with an UnsupportedVersion error when no version matches.
func (m *Manager) Open(params protocol.InitializeParams) (Session, error) {
	version, err := protocol.NegotiateVersion(params.ProtocolVersion, m.versions)
	if err != nil {
		return Session{}, err
	}

	now := m.now()
	m.mu.Lock()
	id := uuid.NewString()
	for m.sessions[id] != nil {
		id = uuid.NewString()
	}
	s := &Session{
		ID:              id,
		CreatedAt:       now,
		LastActive:      now,
		ProtocolVersion: version,
		Capabilities:    m.capabilities,
		ClientInfo:      params.ClientInfo,
	}
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session opened",
		zap.String("session_id", id),
		zap.String("protocol_version", version),
		zap.String("client", params.ClientInfo.Name),
		zap.Int("active_sessions", count))
	return *s, nil
}

// Get looks up a session without marking it active.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, unknownSession(id)
	}
	return *s, nil
}

// Touch marks a session active and returns it. It fails with UnknownSession
// once the session is closed.
func (m *Manager) Touch(id string) (Session, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, unknownSession(id)
	}
	s.LastActive = now
	return *s, nil
}

// Close invalidates a session. It reports false if the id was not open.
func (m *Manager) Close(id string, reason CloseReason) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	hooks := m.onClose
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.logger.Info("session closed", zap.String("session_id", id), zap.String("reason", string(reason)))
	for _, fn := range hooks {
		fn(id, reason)
	}
	return true
}

// Expire closes every session idle for longer than the TTL and returns
// their ids.
func (m *Manager) Expire(now time.Time) []string {
	if m.ttl <= 0 {
		return nil
	}

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if now.Sub(s.LastActive) > m.ttl {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	expired := stale[:0]
	for _, id := range stale {
		if m.Close(id, ReasonExpired) {
			expired = append(expired, id)
		}
	}
	return expired
}

// CloseAll closes every open session.
func (m *Manager) CloseAll(reason CloseReason) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id, reason)
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func unknownSession(id string) *protocol.Error {
	return protocol.NewKindErrorf(protocol.KindUnknownSession, "unknown session: %s", id)
}
