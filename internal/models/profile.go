// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package models

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/genre"
)

// InteractionKind discriminates engagement types.
type InteractionKind string

const (
	KindLike    InteractionKind = "LIKE"
	KindDislike InteractionKind = "DISLIKE"
	KindWatch   InteractionKind = "WATCH"
	KindRating  InteractionKind = "RATING"
)

// ParseInteractionKind resolves a kind case-insensitively.
func ParseInteractionKind(s string) (InteractionKind, error) {
	k := InteractionKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case KindLike, KindDislike, KindWatch, KindRating:
		return k, nil
	}
	return "", fmt.Errorf("unknown interaction kind %q", s)
}

// Weights is the per-kind weight table applied to genre scores.
// RATING has no entry: the star value is used directly.
type Weights struct {
	Like    float64 `koanf:"like"`
	Dislike float64 `koanf:"dislike"`
	Watch   float64 `koanf:"watch"`
}

// DefaultWeights returns the standard weight table.
func DefaultWeights() Weights {
	return Weights{
		Like:    1.0,
		Dislike: -1.0,
		Watch:   0.5,
	}
}

// Weight returns weight(kind). For RATING it returns value; unknown kinds
// weigh zero.
func (w Weights) Weight(kind InteractionKind, value float64) float64 {
	switch kind {
	case KindLike:
		return w.Like
	case KindDislike:
		return w.Dislike
	case KindWatch:
		return w.Watch
	case KindRating:
		return value
	default:
		return 0
	}
}

// Engagement returns the engagement score increment of one interaction.
// Ratings contribute their category weight; every other kind contributes
// weight(kind) * (1 + value).
func (w Weights) Engagement(kind InteractionKind, value float64) float64 {
	if kind == KindRating {
		return float64(RatingCategoryFor(int(value)).Weight())
	}
	return w.Weight(kind, value) * (1 + value)
}

// RatingCategory buckets star ratings.
type RatingCategory string

const (
	RatingDetractor RatingCategory = "DETRACTOR"
	RatingNeutral   RatingCategory = "NEUTRAL"
	RatingPromoter  RatingCategory = "PROMOTER"
)

// RatingCategoryFor maps stars to a category: <=2 detractor, 3 neutral,
// otherwise promoter.
func RatingCategoryFor(stars int) RatingCategory {
	switch {
	case stars <= 2:
		return RatingDetractor
	case stars == 3:
		return RatingNeutral
	default:
		return RatingPromoter
	}
}

// Weight is the engagement contribution of the category.
func (c RatingCategory) Weight() int {
	switch c {
	case RatingDetractor:
		return -5
	case RatingNeutral:
		return 1
	case RatingPromoter:
		return 5
	default:
		return 0
	}
}

// UserProfile is a user's accumulated preference state. It is only ever
// mutated by merge/accumulate operations.
type UserProfile struct {
	UserID               uuid.UUID          `json:"user_id"`
	GenreScores          map[string]float64 `json:"genre_scores"`
	InteractedItemIDs    []uuid.UUID        `json:"interacted_item_ids"` // sorted, unique
	TotalLikes           int64              `json:"total_likes"`
	TotalDislikes        int64              `json:"total_dislikes"`
	TotalWatches         int64              `json:"total_watches"`
	TotalRatings         int64              `json:"total_ratings"`
	TotalEngagementScore float64            `json:"total_engagement_score"`
	CreatedAt            time.Time          `json:"created_at"`
	LastUpdated          time.Time          `json:"last_updated"`
	Version              uint64             `json:"version"`
}

// NewUserProfile returns a zeroed profile. Version 0 means never saved.
func NewUserProfile(userID uuid.UUID, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:            userID,
		GenreScores:       make(map[string]float64),
		InteractedItemIDs: []uuid.UUID{},
		CreatedAt:         now,
		LastUpdated:       now,
	}
}

// HasInteracted reports whether itemID is in the interacted set.
func (p *UserProfile) HasInteracted(itemID uuid.UUID) bool {
	i := p.searchInteracted(itemID)
	return i < len(p.InteractedItemIDs) && p.InteractedItemIDs[i] == itemID
}

// HasHistory reports whether the user interacted with anything.
func (p *UserProfile) HasHistory() bool {
	return len(p.InteractedItemIDs) > 0
}

func (p *UserProfile) searchInteracted(itemID uuid.UUID) int {
	return sort.Search(len(p.InteractedItemIDs), func(i int) bool {
		return bytes.Compare(p.InteractedItemIDs[i][:], itemID[:]) >= 0
	})
}

func (p *UserProfile) addInteracted(itemID uuid.UUID) {
	i := p.searchInteracted(itemID)
	if i < len(p.InteractedItemIDs) && p.InteractedItemIDs[i] == itemID {
		return
	}
	p.InteractedItemIDs = append(p.InteractedItemIDs, uuid.Nil)
	copy(p.InteractedItemIDs[i+1:], p.InteractedItemIDs[i:])
	p.InteractedItemIDs[i] = itemID
}

// ApplyInteraction merges one interaction with item into the profile.
// It is additive: applying the same interaction twice counts twice.
func (p *UserProfile) ApplyInteraction(item *ItemFeature, kind InteractionKind, value float64, w Weights, now time.Time) {
	if p.GenreScores == nil {
		p.GenreScores = make(map[string]float64)
	}

	weight := w.Weight(kind, value)
	for _, g := range item.Genres {
		p.GenreScores[string(g)] += weight
	}

	p.addInteracted(item.ItemID)

	switch kind {
	case KindLike:
		p.TotalLikes++
	case KindDislike:
		p.TotalDislikes++
	case KindWatch:
		p.TotalWatches++
	case KindRating:
		p.TotalRatings++
	}

	p.TotalEngagementScore += w.Engagement(kind, value)
	p.LastUpdated = now
}

// PreferenceVector derives the user's vector in embedding slot order from
// GenreScores. It is not stored.
func (p *UserProfile) PreferenceVector() []float64 {
	vec := make([]float64, genre.Count)
	for i, g := range genre.All() {
		vec[i] = p.GenreScores[string(g)]
	}
	return vec
}
