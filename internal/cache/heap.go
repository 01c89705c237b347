// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package cache

import (
	"container/heap"
	"sync"
	"time"
)

// HeapEntry is one element of a TimeHeap.
type HeapEntry[K comparable, V any] struct {
	Key       K
	Value     V
	Timestamp time.Time
	index     int
}

// entries implements heap.Interface over the backing slice.
type entries[K comparable, V any] []*HeapEntry[K, V]

func (e entries[K, V]) Len() int { return len(e) }

func (e entries[K, V]) Less(i, j int) bool {
	return e[i].Timestamp.Before(e[j].Timestamp)
}

func (e entries[K, V]) Swap(i, j int) {
	e[i], e[j] = e[j], e[i]
	e[i].index = i
	e[j].index = j
}

func (e *entries[K, V]) Push(x any) {
	entry := x.(*HeapEntry[K, V])
	entry.index = len(*e)
	*e = append(*e, entry)
}

func (e *entries[K, V]) Pop() any {
	old := *e
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*e = old[:n-1]
	return entry
}

// TimeHeap is a keyed min-heap ordered by timestamp, oldest first.
// Push, Remove and Pop are O(log n); Get is O(1).
type TimeHeap[K comparable, V any] struct {
	mu     sync.RWMutex
	items  entries[K, V]
	byKey  map[K]*HeapEntry[K, V]
	maxLen int
}

// NewTimeHeap creates a heap holding at most maxLen entries (0 = unbounded).
func NewTimeHeap[K comparable, V any](maxLen int) *TimeHeap[K, V] {
	return &TimeHeap[K, V]{
		byKey:  make(map[K]*HeapEntry[K, V]),
		maxLen: maxLen,
	}
}

// Push inserts or replaces the entry for key. When the heap grows past its
// bound the oldest entry is evicted and returned with ok=true.
func (h *TimeHeap[K, V]) Push(key K, value V, ts time.Time) (evicted *HeapEntry[K, V], ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, found := h.byKey[key]; found {
		existing.Value = value
		existing.Timestamp = ts
		heap.Fix(&h.items, existing.index)
		return nil, false
	}

	entry := &HeapEntry[K, V]{Key: key, Value: value, Timestamp: ts}
	heap.Push(&h.items, entry)
	h.byKey[key] = entry

	if h.maxLen > 0 && len(h.items) > h.maxLen {
		oldest := heap.Pop(&h.items).(*HeapEntry[K, V])
		delete(h.byKey, oldest.Key)
		return oldest, true
	}
	return nil, false
}

// Get returns a snapshot of the entry for key.
func (h *TimeHeap[K, V]) Get(key K) (*HeapEntry[K, V], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.byKey[key]
	if !ok {
		return nil, false
	}
	return e.snapshot(), true
}

// Remove deletes the entry for key and returns it.
func (h *TimeHeap[K, V]) Remove(key K) (*HeapEntry[K, V], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.byKey[key]
	if !ok {
		return nil, false
	}
	heap.Remove(&h.items, e.index)
	delete(h.byKey, key)
	return e, true
}

// Peek returns the oldest entry without removing it.
func (h *TimeHeap[K, V]) Peek() (*HeapEntry[K, V], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0].snapshot(), true
}

// PopBefore removes and returns every entry with a timestamp before t,
// oldest first.
func (h *TimeHeap[K, V]) PopBefore(t time.Time) []*HeapEntry[K, V] {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*HeapEntry[K, V]
	for len(h.items) > 0 && h.items[0].Timestamp.Before(t) {
		e := heap.Pop(&h.items).(*HeapEntry[K, V])
		delete(h.byKey, e.Key)
		out = append(out, e)
	}
	return out
}

// All returns a snapshot of the entries in heap order (not sorted).
func (h *TimeHeap[K, V]) All() []*HeapEntry[K, V] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*HeapEntry[K, V], len(h.items))
	for i, e := range h.items {
		out[i] = e.snapshot()
	}
	return out
}

// Len returns the number of entries.
func (h *TimeHeap[K, V]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (e *HeapEntry[K, V]) snapshot() *HeapEntry[K, V] {
	return &HeapEntry[K, V]{Key: e.Key, Value: e.Value, Timestamp: e.Timestamp, index: -1}
}
