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
package llm

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// RateLimiterConfig configures the backend rate limiter.
type RateLimiterConfig struct {
	// Enabled enables rate limiting
	Enabled bool

	// RequestsPerSecond is the sustained request rate. Default: 2
	RequestsPerSecond float64

	// BurstCapacity is the maximum burst of requests allowed. Default: 5
	BurstCapacity int

	// QueueTimeout is the maximum time a request can wait for a token.
	// Default: 1 minute
	QueueTimeout time.Duration

	// Logger for rate limiter events
	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns defaults suited to hosted chat APIs.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 2.0,
		BurstCapacity:     5,
		QueueTimeout:      time.Minute,
		Logger:            zap.NewNop(),
	}
}

// ErrRateLimiterQueueTimeout is returned when no token became available
// within QueueTimeout.
var ErrRateLimiterQueueTimeout = errors.New("rate limiter queue timeout")

// RateLimiter implements token bucket rate limiting for backend requests.
// It never retries; a throttled call surfaces to the caller as-is.
type RateLimiter struct {
	config RateLimiterConfig

	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex

	metrics   RateLimiterMetrics
	metricsMu sync.RWMutex
}

// RateLimiterMetrics tracks rate limiter activity.
type RateLimiterMetrics struct {
	TotalRequests   int64
	DelayedRequests int64
	DroppedRequests int64
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 2.0
	}
	if config.BurstCapacity <= 0 {
		config.BurstCapacity = 1
	}
	if config.QueueTimeout <= 0 {
		config.QueueTimeout = time.Minute
	}

	return &RateLimiter{
		config:     config,
		tokens:     float64(config.BurstCapacity),
		maxTokens:  float64(config.BurstCapacity),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is available, the queue timeout elapses or ctx
// is done. A disabled or nil limiter never waits.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || !rl.config.Enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.NewTimer(rl.config.QueueTimeout)
	defer deadline.Stop()

	delayed := false
	for {
		wait, ok := rl.acquireToken()
		if ok {
			rl.recordMetric("request", delayed)
			return nil
		}
		if !delayed {
			delayed = true
			rl.config.Logger.Debug("backend request delayed by rate limiter", zap.Duration("wait", wait))
		}

		select {
		case <-time.After(wait):
		case <-deadline.C:
			rl.recordMetric("dropped", false)
			return errors.Wrapf(ErrRateLimiterQueueTimeout, "after %v", rl.config.QueueTimeout)
		case <-ctx.Done():
			rl.recordMetric("dropped", false)
			return ctx.Err()
		}
	}
}

// Do waits for a token and then runs call once. A request that never gets
// a token fails with ErrBackendUnavailable. A nil limiter runs call
// directly.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	if err := rl.Wait(ctx); err != nil {
		return "", errors.Mark(errors.Wrap(err, "rate limiter"), ErrBackendUnavailable)
	}
	return call(ctx)
}

// acquireToken takes a token if one is available, otherwise it reports how
// long until the next one.
func (rl *RateLimiter) acquireToken() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = min(rl.maxTokens, rl.tokens+elapsed*rl.refillRate)
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return 0, true
	}

	missing := 1.0 - rl.tokens
	return time.Duration(missing / rl.refillRate * float64(time.Second)), false
}

func (rl *RateLimiter) recordMetric(event string, delayed bool) {
	rl.metricsMu.Lock()
	defer rl.metricsMu.Unlock()

	switch event {
	case "request":
		rl.metrics.TotalRequests++
		if delayed {
			rl.metrics.DelayedRequests++
		}
	case "dropped":
		rl.metrics.DroppedRequests++
	}
}

// GetMetrics returns current rate limiter metrics.
func (rl *RateLimiter) GetMetrics() RateLimiterMetrics {
	rl.metricsMu.RLock()
	defer rl.metricsMu.RUnlock()
	return rl.metrics
}
