// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package catalog fetches display metadata for recommended items from the
// catalog service.
//
// Client.FetchMetadataBatch resolves a set of item ids with as few HTTP
// calls as possible:
//
//  1. ids already in a cache tier (process-local LRU, then Redis when
//     configured) are served from it
//  2. the remaining ids are split into chunks of MaxBatchSize and posted to
//     POST {catalog}/api/book/bulk
//  3. identical concurrent chunks share one call (singleflight)
//  4. each call waits on a token bucket (x/time/rate) and runs inside a
//     circuit breaker (gobreaker) so a failing catalog is skipped quickly
//
// Ids the catalog does not know are absent from the result. Callers treat
// any error as "no enrichment" rather than a failed request.
package catalog
