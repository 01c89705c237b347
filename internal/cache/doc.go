// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package cache provides small generic in-memory structures shared by the
intake and read paths.

# Structures

  - LRU: bounded least-recently-used map with per-entry TTL. Used as the L1
    cache in front of the catalog metadata client.
  - TimeHeap: keyed min-heap ordered by timestamp. Used by the dead letter
    queue to evict the oldest failure first and to expire entries past the
    retention window.

Both types are safe for concurrent use.

# Usage

	lru := cache.NewLRU[uuid.UUID, models.ItemMetadata](4096, 10*time.Minute)
	lru.Add(id, meta)
	if meta, ok := lru.Get(id); ok {
	    // hit
	}

	h := cache.NewTimeHeap[string, *Entry](10000)
	if evicted, ok := h.Push(id, entry, entry.FirstFailure); ok {
	    log.Printf("evicted %s", evicted.Key)
	}
	expired := h.PopBefore(time.Now().Add(-retention))
*/
package cache
