// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/models"
)

// Sources of a recommendation page.
const (
	SourcePersonalized = "personalized"
	SourcePopular      = "popular"
)

// ItemRanker is the item feature store's ranking surface.
type ItemRanker interface {
	FindRelevantFor(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RankedItem, error)
	FindMostPopular(ctx context.Context, limit, offset int) ([]models.RankedItem, error)
	FindMostPopularFor(ctx context.Context, userID uuid.UUID, exclude []uuid.UUID, limit, offset int) ([]models.RankedItem, error)
}

// Request is a recommendation request for one user.
type Request struct {
	UserID uuid.UUID
	Limit  int
	Offset int

	// RequestID is echoed in the response metadata.
	RequestID string
}

// Response is one page of recommendations in rank order.
type Response struct {
	Items  []models.Recommendation `json:"items"`
	Source string                  `json:"source"`

	// ToppedUp is set when popular items filled a short personalized page.
	ToppedUp bool `json:"topped_up"`

	// Enriched is false when the catalog could not be reached.
	Enriched bool `json:"enriched"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`

	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	RequestID   string    `json:"request_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	LatencyMS   int64     `json:"latency_ms"`
}
