// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package recommend

import (
	"fmt"
	"time"
)

// Config contains the retrieval engine settings.
type Config struct {
	// DefaultLimit is used when a request asks for no limit.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps the page size.
	MaxLimit int `json:"max_limit"`

	// TopUp fills short personalized pages from the popularity ranking.
	TopUp bool `json:"top_up"`

	// EnrichmentTimeout bounds the catalog call. Zero means the request
	// context alone bounds it.
	EnrichmentTimeout time.Duration `json:"enrichment_timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultLimit:      10,
		MaxLimit:          100,
		TopUp:             true,
		EnrichmentTimeout: 2 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit (%d) must be >= default_limit (%d)", c.MaxLimit, c.DefaultLimit)
	}
	if c.EnrichmentTimeout < 0 {
		return fmt.Errorf("enrichment_timeout must be non-negative, got %v", c.EnrichmentTimeout)
	}
	return nil
}

// clamp applies the default and the bounds to a requested page.
func (c *Config) clamp(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = c.DefaultLimit
	}
	if limit > c.MaxLimit {
		limit = c.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
