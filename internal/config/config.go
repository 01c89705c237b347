// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package config

import (
	"time"

	"github.com/tomtom215/recsync/internal/models"
	"github.com/tomtom215/recsync/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	NATS      NATSConfig      `koanf:"nats"`
	Topics    TopicsConfig    `koanf:"topics"`
	Store     store.Config    `koanf:"store"`
	DLQ       DLQConfig       `koanf:"dlq"`
	Recommend RecommendConfig `koanf:"recommend"`
	Weights   models.Weights  `koanf:"weights"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Redis     RedisConfig     `koanf:"redis"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development", "staging", "production"
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// NATSConfig holds NATS JetStream settings for event intake.
//
// Example - External NATS cluster:
//
//	cfg := NATSConfig{
//	    Enabled:        true,
//	    URL:            "nats://nats-cluster:4222",
//	    EmbeddedServer: false,
//	}
type NATSConfig struct {
	// Enabled controls whether event intake is active. When false the
	// service only serves reads from the existing stores.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process NATS server. If false, expects an
	// external server at URL.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir  string `koanf:"store_dir"`
	MaxMemory int64  `koanf:"max_memory"`
	MaxStore  int64  `koanf:"max_store"`

	// StreamName is the JetStream stream that captures every intake topic.
	StreamName          string `koanf:"stream_name"`
	StreamRetentionDays int    `koanf:"stream_retention_days"`

	// SubscribersCount is the number of concurrent processors per topic.
	// Keep at 1 to preserve per-topic delivery order.
	SubscribersCount int           `koanf:"subscribers_count"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver       int           `koanf:"max_deliver"`

	// Router retry policy. Retryable handler failures are retried
	// in-process with exponential backoff before dead-lettering.
	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterRetryMaxInterval     time.Duration `koanf:"router_retry_max_interval"`
	RouterRetryMultiplier      float64       `koanf:"router_retry_multiplier"`
	RouterRetryJitter          float64       `koanf:"router_retry_jitter"`

	// RouterThrottlePerSecond limits messages processed per second (0 = unlimited).
	RouterThrottlePerSecond int `koanf:"router_throttle_per_second"`

	// RouterCloseTimeout is the maximum time to wait for graceful router shutdown.
	RouterCloseTimeout time.Duration `koanf:"router_close_timeout"`
}

// TopicsConfig names the inbound topics, one per event kind.
type TopicsConfig struct {
	ItemCreated        string `koanf:"item_created"`
	ItemUpdated        string `koanf:"item_updated"`
	ItemDeleted        string `koanf:"item_deleted"`
	InteractionCreated string `koanf:"interaction_created"`
	RatingCreated      string `koanf:"rating_created"`
	PopularityUpdated  string `koanf:"popularity_updated"`
}

// All returns the configured topics in a fixed order.
func (t TopicsConfig) All() []string {
	return []string{
		t.ItemCreated,
		t.ItemUpdated,
		t.ItemDeleted,
		t.InteractionCreated,
		t.RatingCreated,
		t.PopularityUpdated,
	}
}

// DLQConfig holds dead letter queue settings.
type DLQConfig struct {
	// Path is the DuckDB file mirroring DLQ entries. Empty keeps the DLQ in
	// memory only.
	Path            string        `koanf:"path"`
	MaxEntries      int           `koanf:"max_entries"`
	RetentionPeriod time.Duration `koanf:"retention_period"`

	// MaxRetries is how many redrive attempts an entry gets before it is
	// left for manual inspection.
	MaxRetries        int           `koanf:"max_retries"`
	AutoRetryEnabled  bool          `koanf:"auto_retry_enabled"`
	AutoRetryInterval time.Duration `koanf:"auto_retry_interval"`
	AutoRetryBatch    int           `koanf:"auto_retry_batch"`
	CleanupInterval   time.Duration `koanf:"cleanup_interval"`
}

// RecommendConfig holds retrieval engine settings.
type RecommendConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`

	// CandidatePool is how many items by similarity are reranked with the
	// popularity blend.
	CandidatePool    int     `koanf:"candidate_pool"`
	ContentWeight    float64 `koanf:"content_weight"`
	PopularityWeight float64 `koanf:"popularity_weight"`

	// TopUp fills short personalized pages from the popularity list.
	TopUp bool `koanf:"top_up"`

	// EnrichmentTimeout bounds the catalog metadata call per request.
	EnrichmentTimeout time.Duration `koanf:"enrichment_timeout"`
}

// CatalogConfig holds settings for the catalog metadata client.
type CatalogConfig struct {
	URL               string        `koanf:"url"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	MaxBatchSize      int           `koanf:"max_batch_size"`

	// Circuit breaker settings.
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold float64       `koanf:"breaker_failure_threshold"`
	BreakerMinRequests      uint32        `koanf:"breaker_min_requests"`
}

// RedisConfig holds the optional metadata cache settings.
type RedisConfig struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url"`
	KeyPrefix string        `koanf:"key_prefix"`
	TTL       time.Duration `koanf:"ttl"`
}

// SecurityConfig holds authentication and authorization settings
type SecurityConfig struct {
	// AuthMode is "jwt" or "none". Tokens are issued upstream; this
	// service only validates them.
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTIssuer         string        `koanf:"jwt_issuer"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	Casbin            CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig holds Casbin RBAC authorization settings.
//
// Environment Variables:
//   - CASBIN_MODEL_PATH: Path to Casbin model file (default: embedded)
//   - CASBIN_POLICY_PATH: Path to Casbin policy file (default: embedded)
//   - CASBIN_DEFAULT_ROLE: Role for tokens without a roles claim (default: user)
type CasbinConfig struct {
	ModelPath   string `koanf:"model_path"`
	PolicyPath  string `koanf:"policy_path"`
	DefaultRole string `koanf:"default_role"`
}
