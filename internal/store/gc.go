// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package store

import (
	"context"
	"time"

	"github.com/tomtom215/recsync/internal/logging"
)

// GCService runs value log garbage collection on an interval. It
// implements suture.Service.
type GCService struct {
	db       *DB
	interval time.Duration
}

// NewGCService creates the GC loop. A non-positive interval makes Serve
// block until cancelled without collecting.
func NewGCService(db *DB) *GCService {
	return &GCService{db: db, interval: db.config.GCInterval}
}

// Serve implements suture.Service.
func (g *GCService) Serve(ctx context.Context) error {
	if g.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := g.db.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Feature store GC failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Feature store GC completed")
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (g *GCService) String() string {
	return "store-gc"
}
