// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/genre"
	"github.com/tomtom215/recsync/internal/metrics"
	"github.com/tomtom215/recsync/internal/models"
)

// RelevanceConfig tunes FindRelevantFor.
type RelevanceConfig struct {
	// CandidatePool is how many nearest items are re-ranked.
	CandidatePool int `koanf:"candidate_pool"`

	ContentWeight    float64 `koanf:"content_weight"`
	PopularityWeight float64 `koanf:"popularity_weight"`
}

// DefaultRelevanceConfig returns the standard re-ranking blend.
func DefaultRelevanceConfig() RelevanceConfig {
	return RelevanceConfig{
		CandidatePool:    200,
		ContentWeight:    0.7,
		PopularityWeight: 0.3,
	}
}

// ItemStore persists item feature vectors keyed by item id, plus a
// popularity index used for the non-personalized ranking.
type ItemStore struct {
	db        *DB
	relevance RelevanceConfig
	now       func() time.Time
}

// NewItemStore creates an item store over db.
func NewItemStore(db *DB, relevance RelevanceConfig) *ItemStore {
	if relevance.CandidatePool <= 0 {
		relevance.CandidatePool = DefaultRelevanceConfig().CandidatePool
	}
	return &ItemStore{
		db:        db,
		relevance: relevance,
		now:       time.Now,
	}
}

// Create stores a new feature. Returns ErrConflict if the item exists.
func (s *ItemStore) Create(ctx context.Context, itemID uuid.UUID, genres []genre.Genre) (*models.ItemFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f := models.NewItemFeature(itemID, genres, s.now().UTC())
	f.Version = 1

	err := s.db.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(itemKey(itemID))
		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putItem(txn, f, nil)
	})
	err = mapTxnErr(err)
	metrics.RecordStoreOperation("item", "create", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Update replaces genres and embedding of an existing item. Popularity is
// kept. Returns ErrNotFound if the item is absent.
func (s *ItemStore) Update(ctx context.Context, itemID uuid.UUID, genres []genre.Genre) (*models.ItemFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var out *models.ItemFeature
	err := s.db.db.Update(func(txn *badger.Txn) error {
		f, err := getItem(txn, itemID)
		if err != nil {
			return err
		}
		f.Replace(genres, s.now().UTC())
		f.Version++
		out = f
		// popularity unchanged, index key stays valid
		return putItem(txn, f, nil)
	})
	err = mapTxnErr(err)
	metrics.RecordStoreOperation("item", "update", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the item and its popularity index entry. Deleting an
// absent item succeeds.
func (s *ItemStore) Delete(ctx context.Context, itemID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	err := s.db.db.Update(func(txn *badger.Txn) error {
		f, err := getItem(txn, itemID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(popKey(f.PopularityScore, itemID)); err != nil {
			return err
		}
		return txn.Delete(itemKey(itemID))
	})
	err = mapTxnErr(err)
	metrics.RecordStoreOperation("item", "delete", time.Since(start), err)
	return err
}

// Get returns the feature of itemID or ErrNotFound.
func (s *ItemStore) Get(ctx context.Context, itemID uuid.UUID) (*models.ItemFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *models.ItemFeature
	err := s.db.db.View(func(txn *badger.Txn) error {
		f, err := getItem(txn, itemID)
		out = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPopularity replaces the popularity score of an existing item and
// moves its index entry.
func (s *ItemStore) SetPopularity(ctx context.Context, itemID uuid.UUID, score float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	err := s.db.db.Update(func(txn *badger.Txn) error {
		f, err := getItem(txn, itemID)
		if err != nil {
			return err
		}
		old := f.PopularityScore
		f.PopularityScore = score
		f.LastUpdated = s.now().UTC()
		f.Version++
		return putItem(txn, f, &old)
	})
	err = mapTxnErr(err)
	metrics.RecordStoreOperation("item", "set_popularity", time.Since(start), err)
	return err
}

// Count returns the number of stored items.
func (s *ItemStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixPop
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// FindMostPopular returns items by popularity descending, ties broken by
// item id ascending. Score fields other than popularity are nil.
func (s *ItemStore) FindMostPopular(ctx context.Context, limit, offset int) ([]models.RankedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.RankedItem{}, nil
	}
	start := time.Now()

	var out []models.RankedItem
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = scanPopular(txn, nil, limit, offset)
		return err
	})
	metrics.RecordStoreOperation("item", "find_popular", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindMostPopularFor is FindMostPopular with the items userID interacted
// with and the ids in exclude filtered out before offset and limit apply.
// An unknown user filters nothing beyond exclude.
func (s *ItemStore) FindMostPopularFor(ctx context.Context, userID uuid.UUID, exclude []uuid.UUID, limit, offset int) ([]models.RankedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.RankedItem{}, nil
	}
	start := time.Now()

	skip := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var out []models.RankedItem
	err := s.db.db.View(func(txn *badger.Txn) error {
		profile, err := getProfile(txn, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			profile = nil
		case err != nil:
			return err
		}
		out, err = scanPopular(txn, func(id uuid.UUID) bool {
			if _, ok := skip[id]; ok {
				return true
			}
			return profile != nil && profile.HasInteracted(id)
		}, limit, offset)
		return err
	})
	metrics.RecordStoreOperation("item", "find_popular_for", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scanPopular walks the popularity index. Items for which skip reports true
// do not count toward offset.
func scanPopular(txn *badger.Txn, skip func(uuid.UUID) bool, limit, offset int) ([]models.RankedItem, error) {
	if offset < 0 {
		offset = 0
	}
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefixPop
	it := txn.NewIterator(opts)
	defer it.Close()

	out := make([]models.RankedItem, 0, limit)
	skipped := 0
	for it.Rewind(); it.Valid() && len(out) < limit; it.Next() {
		id, ok := idFromPopKey(it.Item().KeyCopy(nil))
		if !ok {
			continue
		}
		if skip != nil && skip(id) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		f, err := getItem(txn, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, models.RankedItem{
			ItemID:          f.ItemID,
			Genres:          genre.Strings(f.Genres),
			PopularityScore: f.PopularityScore,
		})
	}
	return out, nil
}

type candidate struct {
	feature    *models.ItemFeature
	similarity float64
}

// FindRelevantFor ranks items against the user's preference vector.
//
// Items the user already interacted with are excluded. The CandidatePool
// most similar items (cosine) are re-ranked by
// ContentWeight*similarity + PopularityWeight*popularity/maxPopularity,
// then offset and limit are applied. A user with no profile, no history or
// a zero vector gets an empty list.
func (s *ItemStore) FindRelevantFor(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RankedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.RankedItem{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	start := time.Now()

	var pool []candidate
	err := s.db.db.View(func(txn *badger.Txn) error {
		profile, err := getProfile(txn, userID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !profile.HasHistory() {
			return nil
		}
		userVec := profile.PreferenceVector()
		if isZero(userVec) {
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixItem
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var f models.ItemFeature
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &f)
			}); err != nil {
				return fmt.Errorf("decode item: %w", err)
			}
			if profile.HasInteracted(f.ItemID) {
				continue
			}
			pool = append(pool, candidate{feature: &f, similarity: cosine(userVec, f.Embedding)})
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreOperation("item", "find_relevant", time.Since(start), err)
		return nil, err
	}

	out := s.rerank(pool, limit, offset)
	metrics.RecordStoreOperation("item", "find_relevant", time.Since(start), nil)
	return out, nil
}

func (s *ItemStore) rerank(pool []candidate, limit, offset int) []models.RankedItem {
	if len(pool) == 0 {
		return []models.RankedItem{}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].similarity != pool[j].similarity {
			return pool[i].similarity > pool[j].similarity
		}
		return lessID(pool[i].feature.ItemID, pool[j].feature.ItemID)
	})
	if len(pool) > s.relevance.CandidatePool {
		pool = pool[:s.relevance.CandidatePool]
	}

	maxPop := 0.0
	for _, c := range pool {
		if c.feature.PopularityScore > maxPop {
			maxPop = c.feature.PopularityScore
		}
	}

	ranked := make([]models.RankedItem, len(pool))
	for i, c := range pool {
		normPop := 0.0
		if maxPop > 0 {
			normPop = c.feature.PopularityScore / maxPop
		}
		content := c.similarity
		score := s.relevance.ContentWeight*content + s.relevance.PopularityWeight*normPop
		ranked[i] = models.RankedItem{
			ItemID:              c.feature.ItemID,
			Genres:              genre.Strings(c.feature.Genres),
			PopularityScore:     c.feature.PopularityScore,
			ContentScore:        &content,
			RecommendationScore: &score,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if *ranked[i].RecommendationScore != *ranked[j].RecommendationScore {
			return *ranked[i].RecommendationScore > *ranked[j].RecommendationScore
		}
		return lessID(ranked[i].ItemID, ranked[j].ItemID)
	})

	if offset >= len(ranked) {
		return []models.RankedItem{}
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

func lessID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func getItem(txn *badger.Txn, id uuid.UUID) (*models.ItemFeature, error) {
	item, err := txn.Get(itemKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var f models.ItemFeature
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &f)
	}); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", id, err)
	}
	return &f, nil
}

// putItem writes f and its index entry. oldPopularity, when non-nil, is the
// score the existing index entry was written under.
func putItem(txn *badger.Txn, f *models.ItemFeature, oldPopularity *float64) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if oldPopularity != nil && *oldPopularity != f.PopularityScore {
		if err := txn.Delete(popKey(*oldPopularity, f.ItemID)); err != nil {
			return err
		}
	}
	if err := txn.Set(itemKey(f.ItemID), data); err != nil {
		return err
	}
	return txn.Set(popKey(f.PopularityScore, f.ItemID), nil)
}

func mapTxnErr(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return ErrVersionConflict
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}
