// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
	"github.com/tomtom215/recsync/internal/models"
)

const (
	bulkPath = "/api/book/bulk"

	// maxResponseBytes caps the bulk response body.
	maxResponseBytes = 8 << 20
)

// ErrUnavailable wraps failures talking to the catalog service.
var ErrUnavailable = errors.New("catalog unavailable")

// MetadataSource resolves item ids to catalog metadata.
type MetadataSource interface {
	FetchMetadataBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ItemMetadata, error)
}

type metadataMap = map[uuid.UUID]models.ItemMetadata

// Client is the catalog HTTP client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	cb        *gobreaker.CircuitBreaker[metadataMap]
	group     singleflight.Group
	caches    []Cache
	batchSize int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithCache appends a cache tier. Tiers are consulted in the order added.
func WithCache(c Cache) Option {
	return func(cl *Client) {
		if c != nil {
			cl.caches = append(cl.caches, c)
		}
	}
}

// NewClient creates a catalog client from cfg.
func NewClient(cfg *config.CatalogConfig, opts ...Option) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("catalog url is required")
	}

	batch := cfg.MaxBatchSize
	if batch <= 0 {
		batch = 100
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		cb:        newBreaker(cfg),
		batchSize: batch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newBreaker opens after BreakerFailureThreshold of at least
// BreakerMinRequests calls failed within BreakerInterval.
func newBreaker(cfg *config.CatalogConfig) *gobreaker.CircuitBreaker[metadataMap] {
	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	threshold := cfg.BreakerFailureThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}

	return gobreaker.NewCircuitBreaker[metadataMap](gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

// FetchMetadataBatch returns metadata for ids. Unknown ids are absent from
// the map. A partial result is returned together with the first error when
// some chunks could not be fetched.
func (c *Client) FetchMetadataBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ItemMetadata, error) {
	out := make(map[uuid.UUID]models.ItemMetadata, len(ids))
	missing := dedupe(ids)
	if len(missing) == 0 {
		return out, nil
	}

	// each tier only sees what the tiers before it missed
	for i, tier := range c.caches {
		hits, err := tier.GetMany(ctx, missing)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("cache", tier.Name()).Msg("Catalog cache lookup failed")
			continue
		}
		for id, md := range hits {
			out[id] = md
		}
		if len(hits) > 0 {
			c.fill(ctx, c.caches[:i], hits)
		}
		missing = without(missing, hits)
		if len(missing) == 0 {
			return out, nil
		}
	}

	var firstErr error
	fetched := make(metadataMap, len(missing))
	for start := 0; start < len(missing); start += c.batchSize {
		end := start + c.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk, err := c.fetchChunk(ctx, missing[start:end])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for id, md := range chunk {
			fetched[id] = md
			out[id] = md
		}
	}

	if len(fetched) > 0 {
		c.fill(ctx, c.caches, fetched)
	}
	return out, firstErr
}

func (c *Client) fill(ctx context.Context, tiers []Cache, items metadataMap) {
	for _, tier := range tiers {
		if err := tier.SetMany(ctx, items); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("cache", tier.Name()).Msg("Catalog cache fill failed")
		}
	}
}

// fetchChunk coalesces identical concurrent chunks into one request.
func (c *Client) fetchChunk(ctx context.Context, ids []uuid.UUID) (metadataMap, error) {
	key := chunkKey(ids)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", ErrUnavailable, err)
		}
		return c.cb.Execute(func() (metadataMap, error) {
			return c.post(ctx, ids)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return v.(metadataMap), nil
}

func (c *Client) post(ctx context.Context, ids []uuid.UUID) (result metadataMap, err error) {
	start := time.Now()
	defer func() { metrics.RecordCatalogRequest(time.Since(start), err) }()

	body, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal ids: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bulkPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var items []models.ItemMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	result = make(metadataMap, len(items))
	for _, md := range items {
		if md.ID != uuid.Nil {
			result[md.ID] = md
		}
	}
	return result, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []uuid.UUID, found metadataMap) []uuid.UUID {
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func chunkKey(ids []uuid.UUID) string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
