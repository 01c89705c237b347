// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/genre"
)

// ItemFeature is the materialized feature vector of a catalog item.
//
// Unlike UserProfile it is replaced wholesale on update: Genres and
// Embedding always reflect the genre list of the most recent event.
type ItemFeature struct {
	ItemID          uuid.UUID     `json:"item_id"`
	Genres          []genre.Genre `json:"genres"`
	Embedding       []float64     `json:"embedding"`
	PopularityScore float64       `json:"popularity_score"`
	LastUpdated     time.Time     `json:"last_updated"`
	Version         uint64        `json:"version"`
}

// NewItemFeature builds a feature from a genre list. The embedding is
// computed by the genre codec and always has length genre.Count.
func NewItemFeature(itemID uuid.UUID, genres []genre.Genre, now time.Time) *ItemFeature {
	g := genre.Dedupe(genres)
	return &ItemFeature{
		ItemID:      itemID,
		Genres:      g,
		Embedding:   genre.Encode(g),
		LastUpdated: now,
	}
}

// Replace recomputes genres and embedding from the full genre list,
// keeping identity and popularity.
func (f *ItemFeature) Replace(genres []genre.Genre, now time.Time) {
	g := genre.Dedupe(genres)
	f.Genres = g
	f.Embedding = genre.Encode(g)
	f.LastUpdated = now
}
