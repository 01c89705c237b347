// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	"github.com/goccy/go-json"

	"github.com/tomtom215/recsync/internal/logging"
)

// DLQStore defines the interface for DLQ persistence backends.
type DLQStore interface {
	// Save inserts or replaces an entry.
	Save(ctx context.Context, entry *DLQEntry) error

	// Get returns the entry or nil when absent.
	Get(ctx context.Context, id string) (*DLQEntry, error)

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every entry, oldest failure first.
	List(ctx context.Context) ([]*DLQEntry, error)

	// DeleteExpired removes entries whose first failure is before olderThan.
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)

	Count(ctx context.Context) (int64, error)
}

// OpenDuckDB opens the DLQ database. An empty path opens an in-memory
// database.
func OpenDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	// DuckDB allows one writer per process; a single connection keeps
	// statements serialized.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}
	return db, nil
}

// DuckDBDLQStore implements DLQStore on a dlq_entries table.
type DuckDBDLQStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBDLQStore creates a DuckDB-backed DLQ store. Call CreateTable
// before use.
func NewDuckDBDLQStore(db *sql.DB) *DuckDBDLQStore {
	return &DuckDBDLQStore{db: db}
}

// CreateTable creates the dlq_entries table and indexes if missing.
func (s *DuckDBDLQStore) CreateTable(ctx context.Context) error {
	// DuckDB does not execute multi-statement strings.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dlq_entries (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			original_error TEXT NOT NULL,
			last_error TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			first_failure TIMESTAMP NOT NULL,
			last_failure TIMESTAMP NOT NULL,
			next_retry TIMESTAMP NOT NULL,
			category INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dlq_entries(next_retry)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_first_failure ON dlq_entries(first_failure)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_topic ON dlq_entries(topic)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute DLQ schema statement: %w", err)
		}
	}

	// Flush the WAL so schema replay never runs on the next start.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after dlq_entries table creation")
	}

	logging.Info().Msg("DLQ entries table created/verified")
	return nil
}

// Save persists a DLQ entry.
func (s *DuckDBDLQStore) Save(ctx context.Context, entry *DLQEntry) error {
	if entry == nil || entry.ID == "" {
		return errors.New("entry with an id is required")
	}

	md := entry.Metadata
	if md == nil {
		md = map[string]string{}
	}
	metadata, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT INTO dlq_entries (
			id, topic, kind, payload, metadata,
			original_error, last_error, retry_count,
			first_failure, last_failure, next_retry,
			category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_error = EXCLUDED.last_error,
			retry_count = EXCLUDED.retry_count,
			last_failure = EXCLUDED.last_failure,
			next_retry = EXCLUDED.next_retry,
			category = EXCLUDED.category
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Topic,
		string(entry.Kind),
		string(entry.Payload),
		string(metadata),
		entry.OriginalError,
		entry.LastError,
		entry.RetryCount,
		entry.FirstFailure.UTC(),
		entry.LastFailure.UTC(),
		entry.NextRetry.UTC(),
		int(entry.Category),
	)
	if err != nil {
		return fmt.Errorf("save DLQ entry: %w", err)
	}
	return nil
}

const selectEntryColumns = `
	SELECT
		id, topic, kind, payload, metadata,
		original_error, last_error, retry_count,
		first_failure, last_failure, next_retry,
		category
	FROM dlq_entries`

// Get retrieves a DLQ entry by id.
func (s *DuckDBDLQStore) Get(ctx context.Context, id string) (*DLQEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectEntryColumns+` WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// Delete removes a DLQ entry by id.
func (s *DuckDBDLQStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM dlq_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete DLQ entry: %w", err)
	}
	return nil
}

// List returns all DLQ entries (used for recovery on startup).
func (s *DuckDBDLQStore) List(ctx context.Context) ([]*DLQEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectEntryColumns+` ORDER BY first_failure ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list DLQ entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*DLQEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan DLQ entry row")
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate DLQ entries: %w", err)
	}
	return entries, nil
}

// DeleteExpired removes entries older than the specified time.
func (s *DuckDBDLQStore) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM dlq_entries WHERE first_failure < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired DLQ entries: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get deleted count: %w", err)
	}
	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).
			Msg("Deleted expired DLQ entries")
	}
	return count, nil
}

// Count returns the total number of DLQ entries.
func (s *DuckDBDLQStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dlq_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("count DLQ entries: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*DLQEntry, error) {
	var (
		e                 DLQEntry
		kind, payload, md string
		category          int
		first, last, next time.Time
	)
	err := row.Scan(
		&e.ID, &e.Topic, &kind, &payload, &md,
		&e.OriginalError, &e.LastError, &e.RetryCount,
		&first, &last, &next,
		&category,
	)
	if err != nil {
		return nil, err
	}
	if md != "" {
		if err := json.Unmarshal([]byte(md), &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata of %s: %w", e.ID, err)
		}
	}
	e.Kind = Kind(kind)
	e.Payload = []byte(payload)
	e.FirstFailure = first.UTC()
	e.LastFailure = last.UTC()
	e.NextRetry = next.UTC()
	e.Category = ErrorCategory(category)
	return &e, nil
}

// PersistentDLQHandler mirrors the in-memory DLQ into a DLQStore. Writes
// are synchronous: Add fails when the entry could not be persisted, so the
// caller can refuse to ack the message.
type PersistentDLQHandler struct {
	*DLQHandler
	store DLQStore
}

// NewPersistentDLQHandler creates a DLQ handler and loads the persisted
// entries into memory.
func NewPersistentDLQHandler(ctx context.Context, cfg DLQConfig, store DLQStore) (*PersistentDLQHandler, error) {
	handler, err := NewDLQHandler(cfg)
	if err != nil {
		return nil, err
	}

	h := &PersistentDLQHandler{DLQHandler: handler, store: store}
	if err := h.load(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *PersistentDLQHandler) load(ctx context.Context) error {
	entries, err := h.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load persisted DLQ entries: %w", err)
	}
	for _, entry := range entries {
		h.restore(entry)
	}
	if len(entries) > 0 {
		logging.Info().Int("count", len(entries)).Msg("Loaded DLQ entries from persistent storage")
	}
	return nil
}

// Add stores the entry in memory and persists it.
func (h *PersistentDLQHandler) Add(ctx context.Context, entry *DLQEntry) error {
	_, existed := h.entries.Get(entry.ID)
	stored, evictedID := h.add(entry)
	if err := h.store.Save(ctx, stored); err != nil {
		if !existed {
			h.remove(stored.ID)
		}
		return fmt.Errorf("persist DLQ entry %s: %w", stored.ID, err)
	}
	if evictedID != "" {
		if err := h.store.Delete(ctx, evictedID); err != nil {
			logging.Warn().Err(err).Str("entry_id", evictedID).Msg("Failed to delete evicted DLQ entry")
		}
	}
	return nil
}

// MarkRetryFailed records the failed retry in memory and in the store.
func (h *PersistentDLQHandler) MarkRetryFailed(ctx context.Context, id string, err error) (bool, error) {
	more, updated, ok := h.markRetryFailed(id, err)
	if !ok {
		return false, ErrEntryNotFound
	}
	if saveErr := h.store.Save(ctx, updated); saveErr != nil {
		return more, fmt.Errorf("persist DLQ retry of %s: %w", id, saveErr)
	}
	return more, nil
}

// Remove deletes the entry from memory and from the store.
func (h *PersistentDLQHandler) Remove(ctx context.Context, id string) (bool, error) {
	removed := h.remove(id)
	if err := h.store.Delete(ctx, id); err != nil {
		return removed, fmt.Errorf("delete persisted DLQ entry %s: %w", id, err)
	}
	return removed, nil
}

// Cleanup drops expired entries from memory and from the store.
func (h *PersistentDLQHandler) Cleanup(ctx context.Context) (int, error) {
	expired := h.cleanup()
	cutoff := h.now().Add(-h.config.RetentionTime)
	if _, err := h.store.DeleteExpired(ctx, cutoff); err != nil {
		return len(expired), err
	}
	return len(expired), nil
}
