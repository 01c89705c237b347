// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/recsync/internal/catalog"
	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/logging"
)

// Local metadata cache sizing.
const (
	localCacheSize = 10000
	localCacheTTL  = 5 * time.Minute
)

// initCatalog builds the metadata source used to enrich recommendations.
// It returns a nil source when no catalog URL is configured, in which case
// results are served unenriched. A Redis tier is added when enabled and
// reachable; an unreachable Redis is logged and skipped. The returned
// client is nil unless Redis is in use.
func initCatalog(ctx context.Context, cfg *config.Config, local *catalog.LocalCache, health *eventprocessor.HealthChecker) (catalog.MetadataSource, *redis.Client) {
	if cfg.Catalog.URL == "" {
		logging.Info().Msg("Catalog URL not set, recommendations will not be enriched")
		return nil, nil
	}

	opts := []catalog.Option{catalog.WithCache(local)}

	var rc *redis.Client
	if cfg.Redis.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := catalog.Connect(connectCtx, cfg.Redis.URL)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Msg("Redis unavailable, continuing with the local cache only")
		} else {
			rc = client
			redisCache := catalog.NewRedisCache(client, &cfg.Redis)
			opts = append(opts, catalog.WithCache(redisCache))
			if health != nil {
				health.RegisterComponent("redis", redisHealth(redisCache))
			}
			logging.Info().Str("prefix", cfg.Redis.KeyPrefix).Dur("ttl", cfg.Redis.TTL).Msg("Redis metadata cache enabled")
		}
	}

	client, err := catalog.NewClient(&cfg.Catalog, opts...)
	if err != nil {
		logging.Warn().Err(err).Msg("Catalog client unavailable, recommendations will not be enriched")
		return nil, rc
	}
	if health != nil {
		health.RegisterComponent("catalog", catalogHealth(client))
	}
	logging.Info().Str("url", cfg.Catalog.URL).Msg("Catalog client initialized")
	return client, rc
}

// catalogHealth reports an open breaker as degraded: recommendations are
// still served, only without metadata.
func catalogHealth(c *catalog.Client) eventprocessor.HealthCheckFunc {
	return func(_ context.Context) eventprocessor.ComponentHealth {
		state := c.BreakerState()
		details := map[string]interface{}{"circuit_breaker_state": state.String()}
		if state == gobreaker.StateClosed {
			return eventprocessor.ComponentHealth{Healthy: true, Message: "catalog reachable", Details: details}
		}
		return eventprocessor.ComponentHealth{Healthy: true, Degraded: true, Message: "catalog circuit breaker is " + state.String(), Details: details}
	}
}

func redisHealth(c *catalog.RedisCache) eventprocessor.HealthCheckFunc {
	return func(ctx context.Context) eventprocessor.ComponentHealth {
		if err := c.Ping(ctx); err != nil {
			return eventprocessor.ComponentHealth{Healthy: true, Degraded: true, Message: "redis cache unreachable", Error: err.Error()}
		}
		return eventprocessor.ComponentHealth{Healthy: true, Message: "redis cache reachable"}
	}
}
