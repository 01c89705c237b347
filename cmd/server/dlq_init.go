// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/logging"
)

// deadLetterQueue is the DLQ as wired into the server: queue operations
// plus a health probe.
type deadLetterQueue interface {
	eventprocessor.DeadLetterQueue
	eventprocessor.HealthCheckable
}

// initDLQ builds the dead letter queue. With a path configured, entries are
// mirrored into DuckDB and reloaded on start; otherwise they live in memory
// only. The returned close function is never nil.
func initDLQ(ctx context.Context, cfg *config.DLQConfig) (deadLetterQueue, func(), error) {
	dlqCfg := dlqConfigFrom(cfg)

	if cfg.Path == "" {
		h, err := eventprocessor.NewDLQHandler(dlqCfg)
		if err != nil {
			return nil, func() {}, err
		}
		logging.Info().Int("max_entries", dlqCfg.MaxEntries).Msg("DLQ initialized (in-memory)")
		return h, func() {}, nil
	}

	db, err := eventprocessor.OpenDuckDB(cfg.Path)
	if err != nil {
		return nil, func() {}, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing DLQ database")
		}
	}

	st := eventprocessor.NewDuckDBDLQStore(db)
	if err := st.CreateTable(ctx); err != nil {
		closeDB()
		return nil, func() {}, fmt.Errorf("create DLQ table: %w", err)
	}
	h, err := eventprocessor.NewPersistentDLQHandler(ctx, dlqCfg, st)
	if err != nil {
		closeDB()
		return nil, func() {}, err
	}
	logging.Info().
		Str("path", cfg.Path).
		Int("max_entries", dlqCfg.MaxEntries).
		Msg("DLQ initialized with DuckDB persistence")
	return h, closeDB, nil
}

func dlqConfigFrom(cfg *config.DLQConfig) eventprocessor.DLQConfig {
	c := eventprocessor.DefaultDLQConfig()
	if cfg.MaxEntries > 0 {
		c.MaxEntries = cfg.MaxEntries
	}
	if cfg.RetentionPeriod > 0 {
		c.RetentionTime = cfg.RetentionPeriod
	}
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	return c
}

func autoRetryConfigFrom(cfg *config.DLQConfig) eventprocessor.DLQAutoRetryConfig {
	c := eventprocessor.DefaultDLQAutoRetryConfig()
	c.Enabled = cfg.AutoRetryEnabled
	if cfg.AutoRetryInterval > 0 {
		c.RetryInterval = cfg.AutoRetryInterval
	}
	if cfg.AutoRetryBatch > 0 {
		c.BatchSize = cfg.AutoRetryBatch
	}
	if cfg.CleanupInterval > 0 {
		c.CleanupInterval = cfg.CleanupInterval
	}
	return c
}
