// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package main

import (
	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/store"
)

// initStores opens the feature store and the two views over it. store.Open
// logs the open; callers only log failures.
func initStores(cfg *config.Config) (*store.DB, *store.ItemStore, *store.ProfileStore, error) {
	db, err := store.Open(cfg.Store)
	if err != nil {
		return nil, nil, nil, err
	}
	items := store.NewItemStore(db, store.RelevanceConfig{
		CandidatePool:    cfg.Recommend.CandidatePool,
		ContentWeight:    cfg.Recommend.ContentWeight,
		PopularityWeight: cfg.Recommend.PopularityWeight,
	})
	return db, items, store.NewProfileStore(db), nil
}
