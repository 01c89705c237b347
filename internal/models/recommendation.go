// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package models

import (
	"time"

	"github.com/google/uuid"
)

// RankedItem is one entry of a store ranking. Score fields are nil when the
// ranking did not compute them (popularity ordering has no content score).
type RankedItem struct {
	ItemID              uuid.UUID `json:"item_id"`
	Genres              []string  `json:"genres"`
	PopularityScore     float64   `json:"popularity_score"`
	ContentScore        *float64  `json:"content_score,omitempty"`
	RecommendationScore *float64  `json:"recommendation_score,omitempty"`
}

// ItemMetadata is the display metadata owned by the catalog service.
type ItemMetadata struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ReleaseYear int       `json:"releaseYear"`
	CoverURL    string    `json:"coverUrl"`
	Genres      []string  `json:"genres"`
	CreatedAt   time.Time `json:"createAt"`
	UpdatedAt   time.Time `json:"updateAt"`
}

// Recommendation is one item of the read API response. Its id is "item_id",
// the same key RankedItem and ItemFeature use.
type Recommendation struct {
	ItemID              uuid.UUID `json:"item_id"`
	Title               string    `json:"title,omitempty"`
	Description         string    `json:"description,omitempty"`
	ReleaseYear         int       `json:"release_year,omitempty"`
	CoverURL            string    `json:"cover_url,omitempty"`
	Genres              []string  `json:"genres"`
	PopularityScore     *float64  `json:"popularity_score,omitempty"`
	RecommendationScore *float64  `json:"recommendation_score,omitempty"`
	ContentScore        *float64  `json:"content_score,omitempty"`
}
