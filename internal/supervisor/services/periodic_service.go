// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Task is one run of periodic maintenance. The int result is how many
// items it touched, for logging.
type Task func(ctx context.Context) (int, error)

// PeriodicServiceConfig configures a PeriodicService.
type PeriodicServiceConfig struct {
	// Name identifies the service in supervisor events.
	Name string

	// Interval between runs. Default: 1h
	Interval time.Duration

	// RunOnStart runs the task once before the first tick.
	RunOnStart bool

	// Timeout bounds one run. Default: Interval
	Timeout time.Duration
}

// PeriodicService runs a maintenance task on a ticker, such as sweeping
// expired DLQ entries or catalog cache entries. Task errors are logged and
// do not restart the service.
type PeriodicService struct {
	task   Task
	config PeriodicServiceConfig
	logger zerolog.Logger
}

// NewPeriodicService creates a periodic maintenance service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPeriodicService(task Task, cfg PeriodicServiceConfig, logger zerolog.Logger) *PeriodicService {
	if cfg.Name == "" {
		cfg.Name = "periodic-task"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &PeriodicService{
		task:   task,
		config: cfg,
		logger: logger.With().Str("service", cfg.Name).Logger(),
	}
}

// Serve implements suture.Service.
func (s *PeriodicService) Serve(ctx context.Context) error {
	s.logger.Debug().
		Dur("interval", s.config.Interval).
		Bool("run_on_start", s.config.RunOnStart).
		Msg("periodic service starting")

	if s.config.RunOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *PeriodicService) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	n, err := s.task(runCtx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("periodic task failed")
		return
	}

	ev := s.logger.Debug()
	if n > 0 {
		ev = s.logger.Info()
	}
	ev.Int("affected", n).Dur("duration", time.Since(start)).Msg("periodic task complete")
}

func (s *PeriodicService) String() string {
	return s.config.Name
}
