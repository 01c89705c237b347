// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
)

// Redriver republishes a DLQ entry to the broker.
type Redriver interface {
	Redrive(ctx context.Context, entry *DLQEntry) error
}

// Entry statuses reported to operators.
const (
	DLQStatusPending   = "pending"
	DLQStatusRetrying  = "retrying"
	DLQStatusExhausted = "exhausted"
)

// DLQAdmin is the operator surface over the DLQ. Retry replays an entry
// in-process; Redrive republishes it to its original topic.
type DLQAdmin struct {
	dlq        DeadLetterQueue
	replay     RetryHandler
	redriver   Redriver
	maxRetries int
}

// NewDLQAdmin creates the admin facade. redriver may be nil when intake
// runs without a broker connection.
func NewDLQAdmin(dlq DeadLetterQueue, replay RetryHandler, redriver Redriver, maxRetries int) *DLQAdmin {
	return &DLQAdmin{dlq: dlq, replay: replay, redriver: redriver, maxRetries: maxRetries}
}

// MaxRetries returns the automatic retry budget per entry.
func (a *DLQAdmin) MaxRetries() int {
	return a.maxRetries
}

// Status classifies an entry by its retry history.
func (a *DLQAdmin) Status(e *DLQEntry) string {
	switch {
	case e.RetryCount >= a.maxRetries:
		return DLQStatusExhausted
	case e.RetryCount > 0:
		return DLQStatusRetrying
	default:
		return DLQStatusPending
	}
}

// List returns a page of entries, oldest failure first, optionally
// restricted to one category. The second result is the filtered total.
func (a *DLQAdmin) List(offset, limit int, category string) ([]*DLQEntry, int) {
	all := a.dlq.List()
	filtered := all[:0]
	for _, e := range all {
		if category == "" || e.Category.String() == category {
			filtered = append(filtered, e)
		}
	}

	total := len(filtered)
	if offset >= total {
		return []*DLQEntry{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return filtered[offset:end], total
}

// Get returns one entry.
func (a *DLQAdmin) Get(id string) (*DLQEntry, error) {
	e, ok := a.dlq.Get(id)
	if !ok {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

// Retry replays the entry now, ignoring its schedule. On success the entry
// is removed; on failure the attempt is recorded and the error returned.
func (a *DLQAdmin) Retry(ctx context.Context, id string) error {
	entry, err := a.Get(id)
	if err != nil {
		return err
	}

	if replayErr := a.replay(ctx, entry); replayErr != nil {
		if _, markErr := a.dlq.MarkRetryFailed(ctx, id, replayErr); markErr != nil {
			logging.Warn().Err(markErr).Str("entry_id", id).Msg("Failed to record DLQ retry failure")
		}
		return fmt.Errorf("retry %s: %w", id, replayErr)
	}

	metrics.RecordDLQRetry(true)
	if _, err := a.dlq.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove retried entry %s: %w", id, err)
	}
	logging.Info().Str("entry_id", id).Str("topic", entry.Topic).Msg("DLQ entry retried")
	return nil
}

// RetryAll replays every entry that still has retries left, regardless of
// schedule. It returns how many succeeded and how many failed.
func (a *DLQAdmin) RetryAll(ctx context.Context) (succeeded, failed int) {
	for _, e := range a.dlq.List() {
		if e.RetryCount >= a.maxRetries {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if err := a.Retry(ctx, e.ID); err != nil {
			failed++
			continue
		}
		succeeded++
	}
	return succeeded, failed
}

// Redrive republishes the entry to its original topic and removes it. The
// republished copy goes through intake like any new message.
func (a *DLQAdmin) Redrive(ctx context.Context, id string) error {
	if a.redriver == nil {
		return ErrNilPublisher
	}
	entry, err := a.Get(id)
	if err != nil {
		return err
	}
	if err := a.redriver.Redrive(ctx, entry); err != nil {
		return fmt.Errorf("redrive %s: %w", id, err)
	}
	if _, err := a.dlq.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove redriven entry %s: %w", id, err)
	}
	logging.Info().Str("entry_id", id).Str("topic", entry.Topic).Msg("DLQ entry redriven")
	return nil
}

// Delete discards the entry.
func (a *DLQAdmin) Delete(ctx context.Context, id string) error {
	removed, err := a.dlq.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrEntryNotFound
	}
	return nil
}

// Stats returns DLQ statistics.
func (a *DLQAdmin) Stats() DLQStats {
	return a.dlq.Stats()
}

// Cleanup drops expired entries now.
func (a *DLQAdmin) Cleanup(ctx context.Context) (int, error) {
	return a.dlq.Cleanup(ctx)
}
