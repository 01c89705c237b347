// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package models defines the data structures shared across Recsync.

Key Components:

  - ItemFeature: genre set and one-hot embedding of a catalog item, plus its
    popularity score
  - UserProfile: per-genre taste scores, engagement counters and the sorted
    set of items the user interacted with
  - Weights: signal weights per interaction kind
  - RankedItem / Recommendation: ranking output before and after catalog
    enrichment
  - APIResponse: standard HTTP response envelope

Model Categories:

1. Read-model state (persisted in the feature store):
  - ItemFeature
  - UserProfile

2. Retrieval:
  - RankedItem: id plus optional content, popularity and blended scores
  - ItemMetadata: catalog fields used to enrich a RankedItem
  - Recommendation: what the API returns per item

3. API Request/Response Models:
  - APIResponse: Standard response wrapper
  - APIError: Error details
  - Metadata: Response metadata (timestamp, query time)

Profile updates are pure functions of the current profile, the item and the
interaction, so handlers can apply them inside an optimistic transaction and
retry on conflict.

Example - applying a like:

	p := models.NewUserProfile(userID, now)
	p.ApplyInteraction(item, models.KindLike, 0, models.DefaultWeights(), now)
	vec := p.PreferenceVector()

Read-side JSON uses snake_case (item_id, genres, popularity_score).
Catalog metadata keeps the catalog service's camelCase keys.
*/
package models
