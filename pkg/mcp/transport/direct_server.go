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
	"context"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/mcp/server"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"go.uber.org/zap"
)

// DirectServer serves the single-endpoint transport: each POST carries one
// request and the response comes back in the HTTP body.
//
// The session id is returned in the Mcp-Session-Id header of the
// initialize response and must accompany every later request. Requests
// bearing an id the server no longer knows fail with UnknownSession.
//
// Requests for one session go through that session's queue and are
// dispatched one at a time in arrival order, as on the SSE transport.
// Separate sessions are served concurrently.
//
// Security: this transport has NO authentication or authorization. Use
// WarnIfNotLocalhost to check the listen address before starting.
type DirectServer struct {
	dispatcher *server.Server
	queueSize  int
	logger     *zap.Logger

	mu     sync.Mutex
	queues map[string]*sessionQueue
	closed bool
}

// DirectServerConfig configures the direct server transport.
type DirectServerConfig struct {
	Server    *server.Server // Required: dispatches requests
	QueueSize int            // Pending requests per session
	Logger    *zap.Logger
}

type directJob struct {
	ctx   context.Context
	body  []byte
	reply chan directReply
}

type directReply struct {
	resp []byte
	err  error
}

// sessionQueue is the worker of one session. Closing the session stops the
// worker and cancels the request it is running.
type sessionQueue struct {
	id     string
	jobs   chan directJob
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (q *sessionQueue) stop() {
	q.once.Do(func() {
		close(q.done)
		q.cancel()
	})
}

// NewDirectServer creates the direct transport handler and subscribes it to
// session closure.
func NewDirectServer(config DirectServerConfig) (*DirectServer, error) {
	if config.Server == nil {
		return nil, errors.New("server is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	s := &DirectServer{
		dispatcher: config.Server,
		queueSize:  config.QueueSize,
		logger:     config.Logger,
		queues:     make(map[string]*sessionQueue),
	}
	config.Server.Sessions().OnClose(s.onSessionClosed)
	return s, nil
}

// ServeHTTP implements http.Handler for the direct endpoint.
func (s *DirectServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *DirectServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r, s.logger)
	if !ok {
		return
	}

	// The session lives in the manager; the peer is rebuilt per request.
	sessionID := r.Header.Get(HeaderSessionID)
	var (
		peer *server.Peer
		resp []byte
		err  error
	)
	if sessionID != "" {
		peer = server.NewBoundPeer(sessionID)
		q := s.queue(sessionID)
		if q == nil {
			// Unknown or closed session: the dispatcher reports it.
			resp, err = s.dispatcher.HandleMessage(r.Context(), peer, body)
		} else {
			var queued bool
			resp, queued, err = s.enqueue(r.Context(), q, peer, body)
			if !queued {
				s.logger.Warn("request queue full", zap.String("session_id", sessionID))
				http.Error(w, "Too many pending requests", http.StatusServiceUnavailable)
				return
			}
		}
	} else {
		peer = server.NewPeer(nil)
		resp, err = s.dispatcher.HandleMessage(r.Context(), peer, body)
	}

	if r.Context().Err() != nil {
		return
	}
	if err != nil {
		s.logger.Error("handler error", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if sessionID == "" {
		if bound := peer.SessionID(); bound != "" {
			w.Header().Set(HeaderSessionID, bound)
			s.logger.Debug("session bound to direct client", zap.String("session_id", bound))
		}
	}

	if resp == nil {
		// Notification - accepted but no content
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// enqueue hands the request to the session worker and waits for its
// response. queued is false when the queue is full.
func (s *DirectServer) enqueue(ctx context.Context, q *sessionQueue, peer *server.Peer, body []byte) (resp []byte, queued bool, err error) {
	job := directJob{ctx: ctx, body: body, reply: make(chan directReply, 1)}
	select {
	case q.jobs <- job:
	case <-q.done:
		resp, err = s.dispatcher.HandleMessage(ctx, peer, body)
		return resp, true, err
	default:
		return nil, false, nil
	}

	select {
	case r := <-job.reply:
		return r.resp, true, r.err
	case <-q.done:
		select {
		case r := <-job.reply:
			return r.resp, true, r.err
		default:
		}
		// The session closed before the request ran.
		resp, err = s.dispatcher.HandleMessage(ctx, peer, body)
		return resp, true, err
	case <-ctx.Done():
		return nil, true, ctx.Err()
	}
}

// queue returns the worker of an open session, starting it on first use.
// It returns nil when the session is not open.
func (s *DirectServer) queue(sessionID string) *sessionQueue {
	if _, err := s.dispatcher.Sessions().Get(sessionID); err != nil {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	q, ok := s.queues[sessionID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		q = &sessionQueue{
			id:     sessionID,
			jobs:   make(chan directJob, s.queueSize),
			done:   make(chan struct{}),
			ctx:    ctx,
			cancel: cancel,
		}
		s.queues[sessionID] = q
		go s.serve(q)
	}
	s.mu.Unlock()

	if !ok {
		// The session may have closed before the worker was registered.
		if _, err := s.dispatcher.Sessions().Get(sessionID); err != nil {
			s.drop(sessionID)
			return nil
		}
	}
	return q
}

// serve runs the session's requests one at a time. A request whose client
// has gone away is skipped.
func (s *DirectServer) serve(q *sessionQueue) {
	peer := server.NewBoundPeer(q.id)
	for {
		select {
		case <-q.done:
			return
		case job := <-q.jobs:
			if job.ctx.Err() != nil {
				continue
			}
			ctx, cancel := context.WithCancel(job.ctx)
			stop := context.AfterFunc(q.ctx, cancel)
			resp, err := s.dispatcher.HandleMessage(ctx, peer, job.body)
			stop()
			cancel()
			job.reply <- directReply{resp: resp, err: err}
		}
	}
}

func (s *DirectServer) drop(sessionID string) {
	s.mu.Lock()
	q, ok := s.queues[sessionID]
	delete(s.queues, sessionID)
	s.mu.Unlock()
	if ok {
		q.stop()
	}
}

func (s *DirectServer) onSessionClosed(sessionID string, _ session.CloseReason) {
	s.drop(sessionID)
}

// QueueCount returns the number of running session workers.
func (s *DirectServer) QueueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Close stops every session worker. Sessions themselves stay open.
func (s *DirectServer) Close() {
	s.mu.Lock()
	s.closed = true
	queues := s.queues
	s.queues = make(map[string]*sessionQueue)
	s.mu.Unlock()

	for _, q := range queues {
		q.stop()
	}
}

func (s *DirectServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		http.Error(w, HeaderSessionID+" header required", http.StatusBadRequest)
		return
	}

	if !s.dispatcher.Sessions().Close(sessionID, session.ReasonClient) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
