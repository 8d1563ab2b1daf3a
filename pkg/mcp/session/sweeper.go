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
package session

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule runs the sweeper once a minute.
const DefaultSweepSchedule = "@every 1m"

// Sweeper periodically expires idle sessions on a cron schedule.
type Sweeper struct {
	cronEngine *cron.Cron
	manager    *Manager
	logger     *zap.Logger
}

// NewSweeper creates a sweeper for m. schedule accepts standard cron specs
// and descriptors such as "@every 30s".
func NewSweeper(m *Manager, schedule string, logger *zap.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		cronEngine: cron.New(),
		manager:    m,
		logger:     logger,
	}
	if _, err := s.cronEngine.AddFunc(schedule, s.sweep); err != nil {
		return nil, errors.Wrapf(err, "invalid sweep schedule %q", schedule)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	expired := s.manager.Expire(s.manager.now())
	if len(expired) > 0 {
		s.logger.Info("expired idle sessions",
			zap.Int("count", len(expired)),
			zap.Int("active_sessions", s.manager.Count()))
	}
}

// Start begins sweeping in the background.
func (s *Sweeper) Start() {
	s.cronEngine.Start()
	s.logger.Debug("session sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	cronCtx := s.cronEngine.Stop()
	select {
	case <-cronCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
