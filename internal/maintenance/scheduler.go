// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package maintenance runs periodic housekeeping that is not part of the
// MQTT connection's own keep-alive monitor: re-probing the environment
// capability bitmap and logging buffer pool allocation/release counts (no
// slabs are released by this package). It is not named
// anywhere in the spec — it exists because a long-lived agent process needs
// a calendar-scheduled heartbeat for this kind of diagnostic work, the same
// role internal/agent/scheduler.go fills for backup jobs in the teacher.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/relaymesh/sockagent/internal/buffer"
	"github.com/relaymesh/sockagent/internal/envcap"
)

// PoolCompactor is satisfied by internal/buffer.Pool; accepted as an
// interface here so tests can supply a fake.
type PoolCompactor interface {
	Stats() (allocated, released int64)
}

// Scheduler drives cron-scheduled maintenance tasks.
//
// Grounded on internal/agent/scheduler.go's robfig/cron wrapper,
// generalized from "one cron job per backup entry" to "one cron job per
// maintenance task."
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	pools  []PoolCompactor
	onCaps func(envcap.Capabilities)
}

// New creates a Scheduler and registers the environment-probe and
// pool-compaction jobs under schedule (anything robfig/cron's default
// parser accepts: a 5-field expression or a descriptor such as
// "@every 5m"). The pool-compaction job only logs each pool's Stats; it
// releases nothing. onCaps, if non-nil, is invoked with the freshly probed
// capabilities on every tick.
func New(schedule string, logger *slog.Logger, pools []PoolCompactor, onCaps func(envcap.Capabilities)) (*Scheduler, error) {
	s := &Scheduler{
		logger: logger.With("component", "maintenance"),
		pools:  pools,
		onCaps: onCaps,
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	if _, err := c.AddFunc(schedule, s.probeEnvironment); err != nil {
		return nil, fmt.Errorf("registering environment probe job: %w", err)
	}
	if _, err := c.AddFunc(schedule, s.compactPools); err != nil {
		return nil, fmt.Errorf("registering pool compaction job: %w", err)
	}

	s.cron = c
	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("maintenance scheduler started")
	s.cron.Start()
}

// Stop stops the scheduler and waits for in-flight jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("maintenance scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("maintenance scheduler stop timed out")
	}
}

func (s *Scheduler) probeEnvironment() {
	caps := envcap.Probe(envcap.Config{})
	s.logger.Debug("environment capability probe", "bits", caps.Bits, "disk_free", caps.DiskFree)
	if s.onCaps != nil {
		s.onCaps(caps)
	}
}

func (s *Scheduler) compactPools() {
	for _, p := range s.pools {
		allocated, released := p.Stats()
		s.logger.Debug("buffer pool stats", "allocated", allocated, "released", released)
	}
}

var _ PoolCompactor = (*buffer.Pool)(nil)
