// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
	"github.com/tomtom215/recsync/internal/models"
)

// ProfileStore persists user preference profiles with optimistic
// versioning. Profiles are only ever merged into, never replaced from an
// event payload.
type ProfileStore struct {
	db         *DB
	maxRetries int
	now        func() time.Time
}

// NewProfileStore creates a profile store over db.
func NewProfileStore(db *DB) *ProfileStore {
	retries := db.config.MaxConflictRetries
	if retries <= 0 {
		retries = DefaultConfig().MaxConflictRetries
	}
	return &ProfileStore{
		db:         db,
		maxRetries: retries,
		now:        time.Now,
	}
}

// Get returns the stored profile or ErrNotFound.
func (s *ProfileStore) Get(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *models.UserProfile
	err := s.db.db.View(func(txn *badger.Txn) error {
		p, err := getProfile(txn, userID)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrCreate returns the stored profile, or a zeroed one with Version 0
// that is not persisted until saved.
func (s *ProfileStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	p, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.NewUserProfile(userID, s.now().UTC()), nil
	}
	return p, err
}

// Save writes p if the stored version still equals p.Version, then bumps
// p.Version. Returns ErrVersionConflict otherwise.
func (s *ProfileStore) Save(ctx context.Context, p *models.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	next := *p
	next.Version = p.Version + 1

	err := s.db.db.Update(func(txn *badger.Txn) error {
		stored, err := getProfile(txn, p.UserID)
		switch {
		case errors.Is(err, ErrNotFound):
			if p.Version != 0 {
				return ErrVersionConflict
			}
		case err != nil:
			return err
		case stored.Version != p.Version:
			return ErrVersionConflict
		}

		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		return txn.Set(profileKey(p.UserID), data)
	})
	err = mapTxnErr(err)
	metrics.RecordStoreOperation("profile", "save", time.Since(start), err)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			metrics.RecordProfileVersionConflict()
		}
		return err
	}
	p.Version = next.Version
	return nil
}

// Mutate loads (or creates) the profile of userID, applies fn and saves it.
// On ErrVersionConflict the profile is re-read and fn reapplied, up to the
// configured retry bound. fn must be a pure merge of the passed profile.
func (s *ProfileStore) Mutate(ctx context.Context, userID uuid.UUID, fn func(p *models.UserProfile) error) (*models.UserProfile, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		p, err := s.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := fn(p); err != nil {
			return nil, err
		}
		err = s.Save(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		logging.Debug().
			Str("user_id", userID.String()).
			Int("attempt", attempt+1).
			Msg("Profile version conflict, retrying merge")
	}
	return nil, fmt.Errorf("profile %s after %d attempts: %w", userID, s.maxRetries+1, lastErr)
}

func getProfile(txn *badger.Txn, id uuid.UUID) (*models.UserProfile, error) {
	item, err := txn.Get(profileKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p models.UserProfile
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &p)
	}); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	if p.GenreScores == nil {
		p.GenreScores = make(map[string]float64)
	}
	return &p, nil
}
