// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/recsync/internal/models"
	"github.com/tomtom215/recsync/internal/store"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recsync/config.yaml",
	"/etc/recsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		NATS: NATSConfig{
			Enabled:             true,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           256 << 20, // 256MB
			MaxStore:            2 << 30,   // 2GB
			StreamName:          "RECOMMENDATION_EVENTS",
			StreamRetentionDays: 7,
			SubscribersCount:    1,
			DurableName:         "recsync",
			QueueGroup:          "recsync-synchronizers",
			AckWaitTimeout:      30 * time.Second,
			MaxDeliver:          -1,
			// Router defaults
			RouterRetryCount:           5,
			RouterRetryInitialInterval: 500 * time.Millisecond,
			RouterRetryMaxInterval:     5 * time.Second,
			RouterRetryMultiplier:      2.0,
			RouterRetryJitter:          0.1,
			RouterThrottlePerSecond:    0, // Unlimited
			RouterCloseTimeout:         30 * time.Second,
		},
		Topics: TopicsConfig{
			ItemCreated:        "created-book",
			ItemUpdated:        "updated-book",
			ItemDeleted:        "deleted-book",
			InteractionCreated: "engagement-created",
			RatingCreated:      "created-rating",
			PopularityUpdated:  "book-popularity-updated",
		},
		Store: store.DefaultConfig(),
		DLQ: DLQConfig{
			Path:              "/data/recsync-dlq.duckdb",
			MaxEntries:        10000,
			RetentionPeriod:   7 * 24 * time.Hour,
			MaxRetries:        10,
			AutoRetryEnabled:  true,
			AutoRetryInterval: time.Minute,
			AutoRetryBatch:    100,
			CleanupInterval:   time.Hour,
		},
		Recommend: RecommendConfig{
			DefaultLimit:      10,
			MaxLimit:          100,
			CandidatePool:     200,
			ContentWeight:     0.7,
			PopularityWeight:  0.3,
			TopUp:             true,
			EnrichmentTimeout: 2 * time.Second,
		},
		Weights: models.DefaultWeights(),
		Catalog: CatalogConfig{
			URL:                     "http://localhost:8081",
			Timeout:                 5 * time.Second,
			RequestsPerSecond:       50,
			Burst:                   20,
			MaxBatchSize:            100,
			BreakerMaxRequests:      3,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 0.6,
			BreakerMinRequests:      10,
		},
		Redis: RedisConfig{
			Enabled:   false,
			URL:       "redis://localhost:6379/0",
			KeyPrefix: "recsync:catalog:",
			TTL:       10 * time.Minute,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			JWTIssuer:         "",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			Casbin: CasbinConfig{
				ModelPath:   "",
				PolicyPath:  "",
				DefaultRole: "user",
			},
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// NATS_URL -> nats.url
	// RECOMMEND_MAX_LIMIT -> recommend.max_limit
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Only variables in the mapping table are loaded.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - NATS_URL -> nats.url
//   - STORE_PATH -> store.path
//   - WEIGHT_LIKE -> weights.like
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// NATS mappings
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_stream_name":    "nats.stream_name",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_subscribers":    "nats.subscribers_count",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",
		"nats_ack_wait":       "nats.ack_wait_timeout",
		"nats_max_deliver":    "nats.max_deliver",
		// Router configuration environment mappings
		"nats_router_retry_count":        "nats.router_retry_count",
		"nats_router_retry_interval":     "nats.router_retry_initial_interval",
		"nats_router_retry_max_interval": "nats.router_retry_max_interval",
		"nats_router_retry_multiplier":   "nats.router_retry_multiplier",
		"nats_router_retry_jitter":       "nats.router_retry_jitter",
		"nats_router_throttle":           "nats.router_throttle_per_second",
		"nats_router_close_timeout":      "nats.router_close_timeout",

		// Topic mappings
		"topic_item_created":        "topics.item_created",
		"topic_item_updated":        "topics.item_updated",
		"topic_item_deleted":        "topics.item_deleted",
		"topic_interaction_created": "topics.interaction_created",
		"topic_rating_created":      "topics.rating_created",
		"topic_popularity_updated":  "topics.popularity_updated",

		// Feature store mappings
		"store_path":                 "store.path",
		"store_in_memory":            "store.in_memory",
		"store_sync_writes":          "store.sync_writes",
		"store_compression":          "store.compression",
		"store_memtable_size":        "store.memtable_size",
		"store_vlog_size":            "store.vlog_size",
		"store_num_compactors":       "store.num_compactors",
		"store_gc_interval":          "store.gc_interval",
		"store_gc_ratio":             "store.gc_ratio",
		"store_max_conflict_retries": "store.max_conflict_retries",

		// DLQ mappings
		"dlq_path":                "dlq.path",
		"dlq_max_entries":         "dlq.max_entries",
		"dlq_retention_period":    "dlq.retention_period",
		"dlq_max_retries":         "dlq.max_retries",
		"dlq_auto_retry_enabled":  "dlq.auto_retry_enabled",
		"dlq_auto_retry_interval": "dlq.auto_retry_interval",
		"dlq_auto_retry_batch":    "dlq.auto_retry_batch",
		"dlq_cleanup_interval":    "dlq.cleanup_interval",

		// Retrieval engine mappings
		"recommend_default_limit":      "recommend.default_limit",
		"recommend_max_limit":          "recommend.max_limit",
		"recommend_candidate_pool":     "recommend.candidate_pool",
		"recommend_content_weight":     "recommend.content_weight",
		"recommend_popularity_weight":  "recommend.popularity_weight",
		"recommend_top_up":             "recommend.top_up",
		"recommend_enrichment_timeout": "recommend.enrichment_timeout",

		// Interaction weight mappings
		"weight_like":    "weights.like",
		"weight_dislike": "weights.dislike",
		"weight_watch":   "weights.watch",

		// Catalog client mappings
		"catalog_url":                       "catalog.url",
		"catalog_timeout":                   "catalog.timeout",
		"catalog_requests_per_second":       "catalog.requests_per_second",
		"catalog_burst":                     "catalog.burst",
		"catalog_max_batch_size":            "catalog.max_batch_size",
		"catalog_breaker_max_requests":      "catalog.breaker_max_requests",
		"catalog_breaker_interval":          "catalog.breaker_interval",
		"catalog_breaker_timeout":           "catalog.breaker_timeout",
		"catalog_breaker_failure_threshold": "catalog.breaker_failure_threshold",
		"catalog_breaker_min_requests":      "catalog.breaker_min_requests",

		// Redis cache mappings
		"redis_enabled":    "redis.enabled",
		"redis_url":        "redis.url",
		"redis_key_prefix": "redis.key_prefix",
		"redis_ttl":        "redis.ttl",

		// Security mappings
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"jwt_issuer":          "security.jwt_issuer",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Casbin mappings
		"casbin_model_path":   "security.casbin.model_path",
		"casbin_policy_path":  "security.casbin.policy_path",
		"casbin_default_role": "security.casbin.default_role",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// ConfigFilePath returns the config file LoadWithKoanf would read, or an
// empty string when none exists.
func ConfigFilePath() string {
	return findConfigFile()
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
//
// The server uses it to apply logging.level changes without a restart.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
