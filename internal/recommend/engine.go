// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recsync/internal/catalog"
	"github.com/tomtom215/recsync/internal/metrics"
	"github.com/tomtom215/recsync/internal/models"
)

// ErrNilUser is returned for a request without a user id.
var ErrNilUser = errors.New("user id is required")

// Engine produces recommendation pages. It is safe for concurrent use.
type Engine struct {
	config  *Config
	logger  zerolog.Logger
	items   ItemRanker
	catalog catalog.MetadataSource
	now     func() time.Time
}

// NewEngine creates an engine over items. meta may be nil, in which case
// responses are never enriched.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, items ItemRanker, meta catalog.MetadataSource, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if items == nil {
		return nil, errors.New("item ranker is required")
	}

	return &Engine{
		config:  cfg,
		logger:  logger.With().Str("component", "recommend").Logger(),
		items:   items,
		catalog: meta,
		now:     time.Now,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return *e.config
}

// Recommend returns one page for req.UserID. It only fails when neither
// ranking can be read.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := e.now()
	if req.UserID == uuid.Nil {
		return nil, ErrNilUser
	}
	limit, offset := e.config.clamp(req.Limit, req.Offset)

	logger := e.logger.With().
		Str("user_id", req.UserID.String()).
		Str("request_id", req.RequestID).
		Int("limit", limit).
		Int("offset", offset).
		Logger()

	// The personalized list is read from its head so the top-up can tell
	// how far past its end the page offset reaches.
	personalized, err := e.items.FindRelevantFor(ctx, req.UserID, offset+limit, 0)
	if err != nil {
		logger.Warn().Err(err).Msg("personalized ranking failed, using popularity")
		personalized = nil
	}

	source := SourcePersonalized
	toppedUp := false
	var ranked []models.RankedItem
	if len(personalized) == 0 {
		source = SourcePopular
		ranked, err = e.items.FindMostPopular(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("popularity ranking: %w", err)
		}
	} else {
		if offset < len(personalized) {
			ranked = personalized[offset:]
		}
		if len(ranked) < limit && e.config.TopUp {
			ranked, toppedUp = e.topUp(ctx, logger, req.UserID, personalized, ranked, limit, offset)
		}
	}

	items, enriched := e.enrich(ctx, logger, ranked)

	latency := e.now().Sub(start)
	metrics.RecordRecommendation(source, latency, toppedUp)
	logger.Debug().
		Str("source", source).
		Bool("topped_up", toppedUp).
		Int("returned", len(items)).
		Dur("latency", latency).
		Msg("recommendation complete")

	return &Response{
		Items:    items,
		Source:   source,
		ToppedUp: toppedUp,
		Enriched: enriched,
		Limit:    limit,
		Offset:   offset,
		Metadata: ResponseMetadata{
			RequestID:   req.RequestID,
			GeneratedAt: start.UTC(),
			LatencyMS:   latency.Milliseconds(),
		},
	}, nil
}

// topUp fills the page from the popularity ranking. The popular items
// continue the personalized list: they exclude everything in personalized
// and everything the user interacted with, and page offsets past the end of
// personalized index into that remainder. Consecutive pages therefore never
// repeat an item.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) topUp(ctx context.Context, logger zerolog.Logger, userID uuid.UUID, personalized, ranked []models.RankedItem, limit, offset int) ([]models.RankedItem, bool) {
	exclude := make([]uuid.UUID, len(personalized))
	for i, r := range personalized {
		exclude[i] = r.ItemID
	}
	rest := offset - len(personalized)
	if rest < 0 {
		rest = 0
	}

	popular, err := e.items.FindMostPopularFor(ctx, userID, exclude, limit-len(ranked), rest)
	if err != nil {
		logger.Warn().Err(err).Msg("top-up ranking failed")
		return ranked, false
	}
	if len(popular) == 0 {
		return ranked, false
	}
	out := make([]models.RankedItem, 0, len(ranked)+len(popular))
	out = append(out, ranked...)
	return append(out, popular...), true
}

// enrich resolves display metadata with one batched call. Items keep their
// rank order; items without metadata are kept bare.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) enrich(ctx context.Context, logger zerolog.Logger, ranked []models.RankedItem) ([]models.Recommendation, bool) {
	out := make([]models.Recommendation, len(ranked))
	for i, r := range ranked {
		out[i] = toRecommendation(r)
	}
	if len(ranked) == 0 || e.catalog == nil {
		return out, e.catalog != nil
	}

	if e.config.EnrichmentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.EnrichmentTimeout)
		defer cancel()
	}

	ids := make([]uuid.UUID, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ItemID
	}

	meta, err := e.catalog.FetchMetadataBatch(ctx, ids)
	if err != nil {
		metrics.RecordEnrichmentFailure()
		logger.Warn().Err(err).Int("items", len(ids)).Int("resolved", len(meta)).
			Msg("catalog enrichment failed, returning unenriched items")
	}

	for i := range out {
		if md, ok := meta[out[i].ItemID]; ok {
			applyMetadata(&out[i], md)
		}
	}
	return out, err == nil
}

func toRecommendation(r models.RankedItem) models.Recommendation {
	popularity := r.PopularityScore
	genres := r.Genres
	if genres == nil {
		genres = []string{}
	}
	return models.Recommendation{
		ItemID:              r.ItemID,
		Genres:              genres,
		PopularityScore:     &popularity,
		RecommendationScore: r.RecommendationScore,
		ContentScore:        r.ContentScore,
	}
}

func applyMetadata(rec *models.Recommendation, md models.ItemMetadata) {
	rec.Title = md.Title
	rec.Description = md.Description
	rec.ReleaseYear = md.ReleaseYear
	rec.CoverURL = md.CoverURL
}
