// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/recsync/internal/cache"
	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
)

// DLQEntry is a message that exhausted its retries, with its error history.
type DLQEntry struct {
	// ID is the broker message UUID.
	ID       string            `json:"id"`
	Topic    string            `json:"topic"`
	Kind     Kind              `json:"kind,omitempty"`
	Payload  []byte            `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`

	OriginalError string        `json:"original_error"`
	LastError     string        `json:"last_error"`
	RetryCount    int           `json:"retry_count"`
	FirstFailure  time.Time     `json:"first_failure"`
	LastFailure   time.Time     `json:"last_failure"`
	NextRetry     time.Time     `json:"next_retry"`
	Category      ErrorCategory `json:"category"`
}

// NewDLQEntry builds an entry for msg received on topic that failed with err.
func NewDLQEntry(topic string, kind Kind, msg *message.Message, err error) *DLQEntry {
	now := time.Now().UTC()
	md := make(map[string]string, len(msg.Metadata))
	for k, v := range msg.Metadata {
		md[k] = v
	}
	payload := make([]byte, len(msg.Payload))
	copy(payload, msg.Payload)

	return &DLQEntry{
		ID:            msg.UUID,
		Topic:         topic,
		Kind:          kind,
		Payload:       payload,
		Metadata:      md,
		OriginalError: err.Error(),
		LastError:     err.Error(),
		FirstFailure:  now,
		LastFailure:   now,
		NextRetry:     now,
		Category:      CategoryOf(err),
	}
}

func (e *DLQEntry) clone() *DLQEntry {
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// DLQConfig holds configuration for the Dead Letter Queue handler.
type DLQConfig struct {
	// MaxRetries is the number of automatic redrive attempts per entry.
	MaxRetries int

	// MaxEntries bounds the queue. The oldest entry is evicted when exceeded.
	MaxEntries int

	// RetentionTime is how long entries are kept before Cleanup drops them.
	RetentionTime time.Duration

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	// RandomSeed makes jitter reproducible when non-zero.
	RandomSeed int64
}

// DefaultDLQConfig returns production defaults for DLQ configuration.
func DefaultDLQConfig() DLQConfig {
	return DLQConfig{
		MaxRetries:        10,
		MaxEntries:        10000,
		RetentionTime:     7 * 24 * time.Hour,
		InitialBackoff:    time.Minute,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// DLQStats holds runtime statistics for the DLQ.
type DLQStats struct {
	TotalEntries      int64                   `json:"total_entries"`
	TotalAdded        int64                   `json:"total_added"`
	TotalRemoved      int64                   `json:"total_removed"`
	TotalRetries      int64                   `json:"total_retries"`
	TotalExpired      int64                   `json:"total_expired"`
	Exhausted         int64                   `json:"exhausted"`
	OldestEntry       time.Time               `json:"oldest_entry,omitempty"`
	NewestEntry       time.Time               `json:"newest_entry,omitempty"`
	EntriesByCategory map[ErrorCategory]int64 `json:"-"`
	ByCategory        map[string]int64        `json:"by_category"`
}

// DeadLetterQueue is the DLQ surface used by the middleware, the retry
// worker and the admin API.
type DeadLetterQueue interface {
	Add(ctx context.Context, entry *DLQEntry) error
	Get(id string) (*DLQEntry, bool)
	List() []*DLQEntry
	Pending(limit int) []*DLQEntry
	MarkRetryFailed(ctx context.Context, id string, err error) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
	Cleanup(ctx context.Context) (int, error)
	Stats() DLQStats
}

// DLQHandler is the in-memory DLQ. Entries are ordered by first failure so
// eviction and expiry drop the oldest first.
type DLQHandler struct {
	config DLQConfig

	// mu serializes read-modify-write sequences on entries.
	mu      sync.Mutex
	entries *cache.TimeHeap[string, *DLQEntry]

	totalAdded   atomic.Int64
	totalRemoved atomic.Int64
	totalRetries atomic.Int64
	totalExpired atomic.Int64

	randMu sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
}

// NewDLQHandler creates a new Dead Letter Queue handler.
func NewDLQHandler(cfg DLQConfig) (*DLQHandler, error) {
	if cfg.MaxRetries <= 0 {
		return nil, errors.New("max retries must be positive")
	}
	if cfg.MaxEntries <= 0 {
		return nil, errors.New("max entries must be positive")
	}
	if cfg.InitialBackoff <= 0 {
		return nil, errors.New("initial backoff must be positive")
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = cfg.InitialBackoff * 64
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.JitterFraction <= 0 || cfg.JitterFraction > 1.0 {
		cfg.JitterFraction = 0.1
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &DLQHandler{
		config:  cfg,
		entries: cache.NewTimeHeap[string, *DLQEntry](cfg.MaxEntries),
		//nolint:gosec // G404: jitter only, not security sensitive
		rng: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Add stores entry. The first automatic retry is scheduled one backoff
// interval from now. Re-adding an existing id keeps its history.
func (h *DLQHandler) Add(_ context.Context, entry *DLQEntry) error {
	_, _ = h.add(entry)
	return nil
}

// add returns the stored entry and the id of any entry evicted to make room.
func (h *DLQHandler) add(entry *DLQEntry) (stored *DLQEntry, evictedID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.entries.Get(entry.ID); ok {
		merged := prev.Value.clone()
		merged.LastError = entry.LastError
		merged.LastFailure = entry.LastFailure
		merged.NextRetry = merged.LastFailure.Add(h.calculateBackoff(merged.RetryCount))
		h.entries.Push(merged.ID, merged, merged.FirstFailure)
		return merged.clone(), ""
	}

	stored = entry.clone()
	stored.NextRetry = stored.LastFailure.Add(h.calculateBackoff(stored.RetryCount))
	if evicted, ok := h.entries.Push(stored.ID, stored, stored.FirstFailure); ok {
		evictedID = evicted.Key
		h.totalExpired.Add(1)
		metrics.RecordDLQExpiry(evicted.Value.Category.String())
	}
	h.totalAdded.Add(1)
	metrics.RecordDLQEntry(stored.Category.String())
	return stored.clone(), evictedID
}

// restore inserts a persisted entry as-is.
func (h *DLQHandler) restore(entry *DLQEntry) {
	h.entries.Push(entry.ID, entry, entry.FirstFailure)
}

// Get returns a copy of the entry.
func (h *DLQHandler) Get(id string) (*DLQEntry, bool) {
	e, ok := h.entries.Get(id)
	if !ok {
		return nil, false
	}
	return e.Value.clone(), true
}

// MarkRetryFailed records a failed redrive. It reports whether automatic
// retries remain. Permanent failures exhaust the entry immediately.
func (h *DLQHandler) MarkRetryFailed(_ context.Context, id string, err error) (bool, error) {
	more, _, ok := h.markRetryFailed(id, err)
	if !ok {
		return false, ErrEntryNotFound
	}
	return more, nil
}

func (h *DLQHandler) markRetryFailed(id string, err error) (more bool, updated *DLQEntry, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, found := h.entries.Get(id)
	if !found {
		return false, nil, false
	}

	entry := e.Value.clone()
	entry.RetryCount++
	if IsPermanentError(err) && entry.RetryCount < h.config.MaxRetries {
		entry.RetryCount = h.config.MaxRetries
	}
	entry.LastError = err.Error()
	entry.LastFailure = h.now()
	entry.NextRetry = entry.LastFailure.Add(h.calculateBackoff(entry.RetryCount))
	h.entries.Push(entry.ID, entry, entry.FirstFailure)

	h.totalRetries.Add(1)
	metrics.RecordDLQRetry(false)
	return entry.RetryCount < h.config.MaxRetries, entry.clone(), true
}

// Remove deletes an entry after a successful redrive or by an operator.
func (h *DLQHandler) Remove(_ context.Context, id string) (bool, error) {
	return h.remove(id), nil
}

func (h *DLQHandler) remove(id string) bool {
	removed, ok := h.entries.Remove(id)
	if !ok {
		return false
	}
	h.totalRemoved.Add(1)
	metrics.RecordDLQRemoval(removed.Value.Category.String())
	return true
}

// Pending returns up to limit entries that are due for an automatic retry,
// oldest failure first. limit <= 0 means no limit.
func (h *DLQHandler) Pending(limit int) []*DLQEntry {
	now := h.now()
	var pending []*DLQEntry
	for _, e := range h.sorted() {
		if e.RetryCount < h.config.MaxRetries && !e.NextRetry.After(now) {
			pending = append(pending, e)
			if limit > 0 && len(pending) == limit {
				break
			}
		}
	}
	return pending
}

// List returns every entry, oldest failure first.
func (h *DLQHandler) List() []*DLQEntry {
	return h.sorted()
}

func (h *DLQHandler) sorted() []*DLQEntry {
	all := h.entries.All()
	out := make([]*DLQEntry, len(all))
	for i, e := range all {
		out[i] = e.Value.clone()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstFailure.Equal(out[j].FirstFailure) {
			return out[i].ID < out[j].ID
		}
		return out[i].FirstFailure.Before(out[j].FirstFailure)
	})
	return out
}

// Cleanup drops entries older than the retention time.
func (h *DLQHandler) Cleanup(_ context.Context) (int, error) {
	return len(h.cleanup()), nil
}

// cleanup returns the ids of the expired entries.
func (h *DLQHandler) cleanup() []string {
	removed := h.entries.PopBefore(h.now().Add(-h.config.RetentionTime))
	ids := make([]string, len(removed))
	for i, e := range removed {
		ids[i] = e.Key
		h.totalExpired.Add(1)
		metrics.RecordDLQExpiry(e.Value.Category.String())
	}
	return ids
}

// Stats returns current DLQ statistics and refreshes the DLQ gauges.
func (h *DLQHandler) Stats() DLQStats {
	stats := DLQStats{
		TotalAdded:        h.totalAdded.Load(),
		TotalRemoved:      h.totalRemoved.Load(),
		TotalRetries:      h.totalRetries.Load(),
		TotalExpired:      h.totalExpired.Load(),
		EntriesByCategory: make(map[ErrorCategory]int64),
		ByCategory:        make(map[string]int64),
	}

	for _, he := range h.entries.All() {
		e := he.Value
		stats.TotalEntries++
		stats.EntriesByCategory[e.Category]++
		stats.ByCategory[e.Category.String()]++
		if e.RetryCount >= h.config.MaxRetries {
			stats.Exhausted++
		}
		if stats.OldestEntry.IsZero() || e.FirstFailure.Before(stats.OldestEntry) {
			stats.OldestEntry = e.FirstFailure
		}
		if stats.NewestEntry.IsZero() || e.FirstFailure.After(stats.NewestEntry) {
			stats.NewestEntry = e.FirstFailure
		}
	}

	oldestAge := float64(0)
	if !stats.OldestEntry.IsZero() {
		oldestAge = h.now().Sub(stats.OldestEntry).Seconds()
	}
	metrics.UpdateDLQGauges(stats.TotalEntries, oldestAge, stats.ByCategory)

	return stats
}

// calculateBackoff returns InitialBackoff * Multiplier^n, capped at
// MaxBackoff, with +/- JitterFraction jitter.
func (h *DLQHandler) calculateBackoff(retryCount int) time.Duration {
	backoff := float64(h.config.InitialBackoff) * math.Pow(h.config.BackoffMultiplier, float64(retryCount))
	if backoff > float64(h.config.MaxBackoff) {
		backoff = float64(h.config.MaxBackoff)
	}

	h.randMu.Lock()
	jitter := backoff * h.config.JitterFraction * (h.rng.Float64()*2 - 1)
	h.randMu.Unlock()

	return time.Duration(backoff + jitter)
}

// RetryPolicy is the in-process retry schedule for retryable handler failures.
type RetryPolicy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	rng   *rand.Rand
	rngMu sync.Mutex
}

// DefaultRetryPolicy returns production defaults for retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicyWithSeed(0)
}

// NewRetryPolicyWithSeed creates a RetryPolicy with a specific random seed.
// A zero seed uses the clock.
func NewRetryPolicyWithSeed(seed int64) *RetryPolicy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RetryPolicy{
		MaxRetries:        5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
		//nolint:gosec // G404: jitter only, not security sensitive
		rng: rand.New(rand.NewSource(seed)),
	}
}

// CalculateBackoff calculates the backoff duration for a given retry count.
func (p *RetryPolicy) CalculateBackoff(retryCount int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(retryCount))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	p.rngMu.Lock()
	jitter := backoff * p.JitterFraction * (p.rng.Float64()*2 - 1)
	p.rngMu.Unlock()

	return time.Duration(backoff + jitter)
}

// MaxTotalBackoff is the longest the policy can sleep on one message,
// with every backoff at its upper jitter bound.
func (p *RetryPolicy) MaxTotalBackoff() time.Duration {
	var total float64
	for i := 0; i < p.MaxRetries; i++ {
		backoff := math.Min(float64(p.InitialBackoff)*math.Pow(p.BackoffMultiplier, float64(i)), float64(p.MaxBackoff))
		total += backoff * (1 + p.JitterFraction)
	}
	return time.Duration(total)
}

// ShouldRetry reports whether attempt retryCount (0-based) may be retried.
// Permanent errors are never retried.
func (p *RetryPolicy) ShouldRetry(err error, retryCount int) bool {
	if retryCount >= p.MaxRetries {
		return false
	}
	return !IsPermanentError(err)
}

// RetryHandler reprocesses a DLQ entry. nil means the entry can be removed.
type RetryHandler func(ctx context.Context, entry *DLQEntry) error

// DLQAutoRetryConfig configures automatic retry behavior.
type DLQAutoRetryConfig struct {
	// Enabled turns on periodic redrive. Cleanup runs regardless.
	Enabled bool

	// RetryInterval is how often to check for pending retries.
	RetryInterval time.Duration

	// BatchSize caps the entries retried per tick.
	BatchSize int

	// MaxConcurrentRetries limits concurrent retry operations.
	MaxConcurrentRetries int

	// CleanupInterval is how often expired entries are dropped.
	CleanupInterval time.Duration
}

// DefaultDLQAutoRetryConfig returns production defaults.
func DefaultDLQAutoRetryConfig() DLQAutoRetryConfig {
	return DLQAutoRetryConfig{
		Enabled:              true,
		RetryInterval:        time.Minute,
		BatchSize:            100,
		MaxConcurrentRetries: 1,
		CleanupInterval:      time.Hour,
	}
}

// AutoRetryWorker periodically replays due DLQ entries and drops expired
// ones. It is a suture service.
type AutoRetryWorker struct {
	dlq     DeadLetterQueue
	handler RetryHandler
	config  DLQAutoRetryConfig
}

// NewAutoRetryWorker creates a new auto-retry worker.
func NewAutoRetryWorker(dlq DeadLetterQueue, handler RetryHandler, cfg DLQAutoRetryConfig) *AutoRetryWorker {
	if cfg.MaxConcurrentRetries <= 0 {
		cfg.MaxConcurrentRetries = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &AutoRetryWorker{dlq: dlq, handler: handler, config: cfg}
}

// Serve runs until ctx is canceled.
func (w *AutoRetryWorker) Serve(ctx context.Context) error {
	cleanup := time.NewTicker(w.config.CleanupInterval)
	defer cleanup.Stop()

	var retryC <-chan time.Time
	if w.config.Enabled {
		retry := time.NewTicker(w.config.RetryInterval)
		defer retry.Stop()
		retryC = retry.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retryC:
			w.ProcessPending(ctx)
		case <-cleanup.C:
			if _, err := w.dlq.Cleanup(ctx); err != nil {
				logging.Warn().Err(err).Msg("DLQ cleanup failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (w *AutoRetryWorker) String() string {
	return "dlq-auto-retry"
}

// ProcessPending retries the due entries once. It returns the number of
// entries that succeeded.
func (w *AutoRetryWorker) ProcessPending(ctx context.Context) int {
	entries := w.dlq.Pending(w.config.BatchSize)
	if len(entries) == 0 {
		return 0
	}

	sem := make(chan struct{}, w.config.MaxConcurrentRetries)
	var wg sync.WaitGroup
	var succeeded atomic.Int64

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			wg.Wait()
			return int(succeeded.Load())
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(e *DLQEntry) {
			defer func() {
				<-sem
				wg.Done()
			}()
			if w.retryEntry(ctx, e) {
				succeeded.Add(1)
			}
		}(entry)
	}

	wg.Wait()
	return int(succeeded.Load())
}

func (w *AutoRetryWorker) retryEntry(ctx context.Context, entry *DLQEntry) bool {
	if err := w.handler(ctx, entry); err != nil {
		if _, markErr := w.dlq.MarkRetryFailed(ctx, entry.ID, err); markErr != nil {
			logging.Warn().Err(markErr).Str("entry_id", entry.ID).Msg("Failed to record DLQ retry failure")
		}
		return false
	}

	metrics.RecordDLQRetry(true)
	if _, err := w.dlq.Remove(ctx, entry.ID); err != nil {
		logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("Failed to remove redriven DLQ entry")
	}
	return true
}
