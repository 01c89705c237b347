// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestTimeHeap_OrderAndEviction(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewTimeHeap[string, int](3)

	h.Push("c", 3, base.Add(3*time.Second))
	h.Push("a", 1, base.Add(1*time.Second))
	h.Push("b", 2, base.Add(2*time.Second))

	if got := h.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	oldest, ok := h.Peek()
	if !ok || oldest.Key != "a" {
		t.Fatalf("Peek() = %v, want a", oldest)
	}

	evicted, ok := h.Push("d", 4, base.Add(4*time.Second))
	if !ok {
		t.Fatal("expected eviction when over capacity")
	}
	if evicted.Key != "a" {
		t.Errorf("evicted %q, want a", evicted.Key)
	}
	if _, found := h.Get("a"); found {
		t.Error("evicted key still retrievable")
	}
}

func TestTimeHeap_UpdateExisting(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewTimeHeap[string, string](0)
	h.Push("x", "first", base)
	h.Push("y", "second", base.Add(time.Minute))

	if _, evicted := h.Push("x", "updated", base.Add(2*time.Minute)); evicted {
		t.Fatal("update must not evict")
	}
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	oldest, _ := h.Peek()
	if oldest.Key != "y" {
		t.Errorf("oldest after update = %q, want y", oldest.Key)
	}
	e, _ := h.Get("x")
	if e.Value != "updated" {
		t.Errorf("value = %q, want updated", e.Value)
	}
}

func TestTimeHeap_RemoveAndPopBefore(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewTimeHeap[int, int](0)
	for i := 0; i < 10; i++ {
		h.Push(i, i, base.Add(time.Duration(i)*time.Minute))
	}

	if _, ok := h.Remove(3); !ok {
		t.Fatal("Remove(3) reported missing")
	}
	if _, ok := h.Remove(3); ok {
		t.Fatal("second Remove(3) reported present")
	}

	popped := h.PopBefore(base.Add(5 * time.Minute))
	want := []int{0, 1, 2, 4}
	if len(popped) != len(want) {
		t.Fatalf("PopBefore returned %d entries, want %d", len(popped), len(want))
	}
	for i, e := range popped {
		if e.Key != want[i] {
			t.Errorf("popped[%d] = %d, want %d", i, e.Key, want[i])
		}
	}
	if h.Len() != 5 {
		t.Errorf("Len() = %d, want 5", h.Len())
	}
	if len(h.All()) != 5 {
		t.Errorf("All() = %d entries, want 5", len(h.All()))
	}
}

func TestLRU_GetAddEvict(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](2, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	// b is now least recently used
	c.Add("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}

	hits, misses, size := c.Stats()
	if hits != 2 || misses != 1 || size != 2 {
		t.Errorf("Stats() = %d/%d/%d, want 2/1/2", hits, misses, size)
	}
}

func TestLRU_TTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string, string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Add("k", "v")
	c.Add("k2", "v2")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should be expired")
	}
	if removed := c.CleanupExpired(); removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestLRU_Remove(t *testing.T) {
	t.Parallel()

	c := NewLRU[int, int](0, 0)
	c.Add(1, 1)
	if !c.Remove(1) {
		t.Error("Remove(1) = false, want true")
	}
	if c.Remove(1) {
		t.Error("second Remove(1) = true, want false")
	}
}

func TestLRU_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewLRU[int, int](100, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Add(g*1000+i, i)
				c.Get(g*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 100 {
		t.Errorf("Len() = %d, exceeds capacity 100", c.Len())
	}
}
