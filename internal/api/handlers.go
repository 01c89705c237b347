// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package api

import (
	"context"
	"time"

	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/recommend"
)

// Recommender produces recommendation pages.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
}

// DLQService is the operator surface over the dead letter queue.
type DLQService interface {
	MaxRetries() int
	Status(e *eventprocessor.DLQEntry) string
	List(offset, limit int, category string) ([]*eventprocessor.DLQEntry, int)
	Get(id string) (*eventprocessor.DLQEntry, error)
	Retry(ctx context.Context, id string) error
	RetryAll(ctx context.Context) (succeeded, failed int)
	Redrive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Stats() eventprocessor.DLQStats
	Cleanup(ctx context.Context) (int, error)
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	CheckAll(ctx context.Context) eventprocessor.OverallHealth
}

// Handler serves the HTTP API.
type Handler struct {
	recommender Recommender
	dlq         DLQService
	health      HealthReporter
	startTime   time.Time
}

// NewHandler creates a Handler. dlq and health may be nil; the DLQ routes
// then answer 503 and readiness reports healthy with no components.
func NewHandler(recommender Recommender, dlq DLQService, health HealthReporter) *Handler {
	return &Handler{
		recommender: recommender,
		dlq:         dlq,
		health:      health,
		startTime:   time.Now(),
	}
}
