// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package recommend is the synchronous read path: it turns the item feature
// store's rankings into a page of recommendations for one user.
//
// # Pipeline
//
//	FindRelevantFor(user) ──empty──▶ FindMostPopular        source=popular
//	        │
//	        │ short page
//	        ▼
//	top-up from FindMostPopularFor                         topped_up=true
//	(skips the personalized list and interacted items)
//	        │
//	        ▼
//	one FetchMetadataBatch for every id; rank order kept
//
// # Paging
//
// Pages index one list: the personalized ranking followed by the popularity
// ranking minus everything already in it. An offset past the personalized
// list continues in the popular remainder, so successive pages never repeat
// an item and never serve one the user interacted with.
//
// # Degradation
//
// A user without a profile or history gets the popularity ranking, never an
// error. A failing personalized query also falls back to popularity. A
// failing or slow catalog yields unenriched items; the failure is logged and
// counted but not returned.
//
// # Thread Safety
//
// Engine holds no per-request state and is safe for concurrent use.
package recommend
