// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/models"
)

// fakeCatalog serves /api/book/bulk from a fixed set of books.
type fakeCatalog struct {
	mu      sync.Mutex
	books   map[uuid.UUID]models.ItemMetadata
	batches [][]uuid.UUID
	calls   atomic.Int32
	status  int
	delay   time.Duration
}

func newFakeCatalog(books ...models.ItemMetadata) *fakeCatalog {
	f := &fakeCatalog{books: make(map[uuid.UUID]models.ItemMetadata), status: http.StatusOK}
	for _, b := range books {
		f.books[b.ID] = b
	}
	return f
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if r.Method != http.MethodPost || r.URL.Path != "/api/book/bulk" {
		http.NotFound(w, r)
		return
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	var ids []uuid.UUID
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.batches = append(f.batches, ids)
	status := f.status
	f.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "catalog down", status)
		return
	}

	out := make([]models.ItemMetadata, 0, len(ids))
	for _, id := range ids {
		if b, ok := f.books[id]; ok {
			out = append(out, b)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func book(title string) models.ItemMetadata {
	return models.ItemMetadata{ID: uuid.New(), Title: title, CoverURL: "https://img/" + title, Genres: []string{"FANTASY"}}
}

func testConfig(url string) *config.CatalogConfig {
	return &config.CatalogConfig{
		URL:                     url,
		Timeout:                 2 * time.Second,
		MaxBatchSize:            100,
		BreakerMaxRequests:      1,
		BreakerInterval:         time.Minute,
		BreakerTimeout:          time.Minute,
		BreakerFailureThreshold: 0.5,
		BreakerMinRequests:      2,
	}
}

func newTestClient(t *testing.T, f *fakeCatalog, mutate func(*config.CatalogConfig), opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	if mutate != nil {
		mutate(cfg)
	}
	c, err := NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(&config.CatalogConfig{}); err == nil {
		t.Error("NewClient() without url should fail")
	}
	if _, err := NewClient(nil); err == nil {
		t.Error("NewClient(nil) should fail")
	}
}

func TestFetchMetadataBatch_SingleCall(t *testing.T) {
	t.Parallel()
	a, b := book("dune"), book("emma")
	f := newFakeCatalog(a, b)
	c := newTestClient(t, f, nil)

	unknown := uuid.New()
	got, err := c.FetchMetadataBatch(context.Background(), []uuid.UUID{a.ID, b.ID, unknown, a.ID})
	if err != nil {
		t.Fatalf("FetchMetadataBatch() error = %v", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("HTTP calls = %d, want 1", f.calls.Load())
	}
	if len(f.batches[0]) != 3 {
		t.Errorf("batch = %v, want duplicates removed", f.batches[0])
	}
	if len(got) != 2 || got[a.ID].Title != "dune" || got[b.ID].CoverURL != "https://img/emma" {
		t.Errorf("got = %v", got)
	}
	if _, ok := got[unknown]; ok {
		t.Error("unknown id must be absent")
	}
}

func TestFetchMetadataBatch_Empty(t *testing.T) {
	t.Parallel()
	f := newFakeCatalog()
	c := newTestClient(t, f, nil)

	got, err := c.FetchMetadataBatch(context.Background(), nil)
	if err != nil || len(got) != 0 || f.calls.Load() != 0 {
		t.Errorf("got=%v err=%v calls=%d", got, err, f.calls.Load())
	}
}

func TestFetchMetadataBatch_Chunks(t *testing.T) {
	t.Parallel()
	var books []models.ItemMetadata
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		b := book(uuid.NewString())
		books = append(books, b)
		ids = append(ids, b.ID)
	}
	f := newFakeCatalog(books...)
	c := newTestClient(t, f, func(cfg *config.CatalogConfig) { cfg.MaxBatchSize = 2 })

	got, err := c.FetchMetadataBatch(context.Background(), ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 || f.calls.Load() != 3 {
		t.Errorf("got %d items in %d calls, want 5 in 3", len(got), f.calls.Load())
	}
}

func TestFetchMetadataBatch_ServerError(t *testing.T) {
	t.Parallel()
	f := newFakeCatalog(book("x"))
	f.status = http.StatusInternalServerError
	c := newTestClient(t, f, nil)

	_, err := c.FetchMetadataBatch(context.Background(), []uuid.UUID{uuid.New()})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestFetchMetadataBatch_BreakerOpens(t *testing.T) {
	t.Parallel()
	f := newFakeCatalog()
	f.status = http.StatusServiceUnavailable
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = c.FetchMetadataBatch(ctx, []uuid.UUID{uuid.New()})
	}
	if c.BreakerState() != gobreaker.StateOpen {
		t.Fatalf("BreakerState() = %v, want open", c.BreakerState())
	}

	_, err := c.FetchMetadataBatch(ctx, []uuid.UUID{uuid.New()})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v", err)
	}
	if f.calls.Load() != 2 {
		t.Errorf("HTTP calls = %d, open breaker must short-circuit", f.calls.Load())
	}
}

func TestFetchMetadataBatch_LocalCache(t *testing.T) {
	t.Parallel()
	a, b := book("dune"), book("emma")
	f := newFakeCatalog(a, b)
	local := NewLocalCache(100, time.Minute)
	c := newTestClient(t, f, nil, WithCache(local))
	ctx := context.Background()

	if _, err := c.FetchMetadataBatch(ctx, []uuid.UUID{a.ID}); err != nil {
		t.Fatal(err)
	}
	if local.Len() != 1 {
		t.Errorf("cache len = %d, want 1", local.Len())
	}

	got, err := c.FetchMetadataBatch(ctx, []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got = %v", got)
	}
	if f.calls.Load() != 2 || len(f.batches[1]) != 1 || f.batches[1][0] != b.ID {
		t.Errorf("second call batch = %v, want only the cache miss", f.batches)
	}

	if _, err := c.FetchMetadataBatch(ctx, []uuid.UUID{a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	if f.calls.Load() != 2 {
		t.Errorf("HTTP calls = %d, fully cached request must not call out", f.calls.Load())
	}
}

type brokenCache struct{}

func (brokenCache) Name() string { return "broken" }
func (brokenCache) GetMany(context.Context, []uuid.UUID) (map[uuid.UUID]models.ItemMetadata, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) SetMany(context.Context, map[uuid.UUID]models.ItemMetadata) error {
	return errors.New("connection refused")
}

func TestFetchMetadataBatch_CacheFailureFallsThrough(t *testing.T) {
	t.Parallel()
	a := book("dune")
	f := newFakeCatalog(a)
	c := newTestClient(t, f, nil, WithCache(brokenCache{}))

	got, err := c.FetchMetadataBatch(context.Background(), []uuid.UUID{a.ID})
	if err != nil || got[a.ID].Title != "dune" {
		t.Errorf("got=%v err=%v", got, err)
	}
}

func TestFetchMetadataBatch_CoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()
	a := book("dune")
	f := newFakeCatalog(a)
	f.delay = 100 * time.Millisecond
	c := newTestClient(t, f, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.FetchMetadataBatch(context.Background(), []uuid.UUID{a.ID})
			if err != nil || got[a.ID].Title != "dune" {
				t.Errorf("got=%v err=%v", got, err)
			}
		}()
	}
	wg.Wait()

	if n := f.calls.Load(); n >= 5 {
		t.Errorf("HTTP calls = %d, identical concurrent batches should share a call", n)
	}
}

func TestLocalCache_Expires(t *testing.T) {
	t.Parallel()
	c := NewLocalCache(10, 20*time.Millisecond)
	a := book("dune")
	ctx := context.Background()

	_ = c.SetMany(ctx, map[uuid.UUID]models.ItemMetadata{a.ID: a})
	if got, _ := c.GetMany(ctx, []uuid.UUID{a.ID}); len(got) != 1 {
		t.Fatalf("GetMany() = %v", got)
	}
	time.Sleep(40 * time.Millisecond)
	if got, _ := c.GetMany(ctx, []uuid.UUID{a.ID}); len(got) != 0 {
		t.Errorf("expired entry returned: %v", got)
	}
}

func TestLocalCache_Sweep(t *testing.T) {
	t.Parallel()
	c := NewLocalCache(10, 20*time.Millisecond)
	a, b := book("dune"), book("emma")
	ctx := context.Background()

	_ = c.SetMany(ctx, map[uuid.UUID]models.ItemMetadata{a.ID: a, b.ID: b})
	time.Sleep(40 * time.Millisecond)

	n, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 2 || c.Len() != 0 {
		t.Errorf("Sweep() removed %d, Len() = %d; want 2, 0", n, c.Len())
	}
}
