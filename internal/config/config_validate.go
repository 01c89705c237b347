// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateNATS,
		c.validateTopics,
		c.validateStore,
		c.validateDLQ,
		c.validateRecommend,
		c.validateWeights,
		c.validateCatalog,
		c.validateRedis,
		c.validateSecurity,
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory      = 64 * 1024 * 1024  // 64MB
	natsMinStore       = 100 * 1024 * 1024 // 100MB
	natsMaxRetention   = 365
	natsMinRetention   = 1
	natsMaxSubscribers = 32
	natsMaxRetries     = 20
)

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("NATS_STREAM_NAME is required when NATS_ENABLED=true")
	}

	return c.validateNATSLimits()
}

// validateNATSLimits validates NATS storage, processing and retry limits
func (c *Config) validateNATSLimits() error {
	n := c.NATS
	if n.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
	}
	if n.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
	}
	if n.StreamRetentionDays < natsMinRetention || n.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between 1 and 365")
	}
	if n.SubscribersCount < 1 || n.SubscribersCount > natsMaxSubscribers {
		return fmt.Errorf("NATS_SUBSCRIBERS must be between 1 and 32")
	}
	if n.RouterRetryCount < 0 || n.RouterRetryCount > natsMaxRetries {
		return fmt.Errorf("NATS_ROUTER_RETRY_COUNT must be between 0 and %d", natsMaxRetries)
	}
	if n.RouterRetryInitialInterval <= 0 {
		return fmt.Errorf("NATS_ROUTER_RETRY_INTERVAL must be positive")
	}
	if n.RouterRetryMaxInterval < n.RouterRetryInitialInterval {
		return fmt.Errorf("NATS_ROUTER_RETRY_MAX_INTERVAL must not be less than NATS_ROUTER_RETRY_INTERVAL")
	}
	if n.RouterRetryMultiplier < 1 {
		return fmt.Errorf("NATS_ROUTER_RETRY_MULTIPLIER must be at least 1")
	}
	if n.RouterRetryJitter < 0 || n.RouterRetryJitter > 1 {
		return fmt.Errorf("NATS_ROUTER_RETRY_JITTER must be between 0 and 1")
	}
	if n.RouterThrottlePerSecond < 0 {
		return fmt.Errorf("NATS_ROUTER_THROTTLE must not be negative")
	}
	if n.AckWaitTimeout <= 0 {
		return fmt.Errorf("NATS_ACK_WAIT must be positive")
	}
	// Retries run while the message is unacked. A schedule that outlasts the
	// ack wait gets the message redelivered before it can be dead-lettered.
	if total, budget := n.worstCaseRetryBackoff(), n.AckWaitTimeout-n.AckWaitTimeout/5; total >= budget {
		return fmt.Errorf("NATS router retries may sleep %s, which must stay below 80%% of NATS_ACK_WAIT (%s)", total, budget)
	}
	return nil
}

// worstCaseRetryBackoff sums every retry backoff at its upper jitter bound.
func (n NATSConfig) worstCaseRetryBackoff() time.Duration {
	var total float64
	for i := 0; i < n.RouterRetryCount; i++ {
		backoff := math.Min(
			float64(n.RouterRetryInitialInterval)*math.Pow(n.RouterRetryMultiplier, float64(i)),
			float64(n.RouterRetryMaxInterval),
		)
		total += backoff * (1 + n.RouterRetryJitter)
	}
	return time.Duration(total)
}

// validateTopics requires every topic to be set and distinct, since the
// topic alone selects the event kind.
func (c *Config) validateTopics() error {
	seen := make(map[string]bool)
	for _, topic := range c.Topics.All() {
		if topic == "" {
			return fmt.Errorf("all TOPIC_* values must be set")
		}
		if seen[topic] {
			return fmt.Errorf("topic %q is configured for more than one event kind", topic)
		}
		seen[topic] = true
	}
	return nil
}

func (c *Config) validateStore() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("STORE: %w", err)
	}
	return nil
}

func (c *Config) validateDLQ() error {
	if c.DLQ.MaxEntries < 1 {
		return fmt.Errorf("DLQ_MAX_ENTRIES must be at least 1")
	}
	if c.DLQ.RetentionPeriod < time.Minute {
		return fmt.Errorf("DLQ_RETENTION_PERIOD must be at least 1m")
	}
	if c.DLQ.MaxRetries < 0 {
		return fmt.Errorf("DLQ_MAX_RETRIES must not be negative")
	}
	if c.DLQ.AutoRetryEnabled {
		if c.DLQ.AutoRetryInterval < time.Second {
			return fmt.Errorf("DLQ_AUTO_RETRY_INTERVAL must be at least 1s")
		}
		if c.DLQ.AutoRetryBatch < 1 {
			return fmt.Errorf("DLQ_AUTO_RETRY_BATCH must be at least 1")
		}
	}
	return nil
}

const weightTolerance = 1e-9

func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.MaxLimit < 1 {
		return fmt.Errorf("RECOMMEND_MAX_LIMIT must be at least 1")
	}
	if r.DefaultLimit < 1 || r.DefaultLimit > r.MaxLimit {
		return fmt.Errorf("RECOMMEND_DEFAULT_LIMIT must be between 1 and RECOMMEND_MAX_LIMIT (%d)", r.MaxLimit)
	}
	if r.CandidatePool < 1 {
		return fmt.Errorf("RECOMMEND_CANDIDATE_POOL must be at least 1")
	}
	if r.ContentWeight < 0 || r.PopularityWeight < 0 {
		return fmt.Errorf("RECOMMEND_CONTENT_WEIGHT and RECOMMEND_POPULARITY_WEIGHT must not be negative")
	}
	if math.Abs(r.ContentWeight+r.PopularityWeight-1) > weightTolerance {
		return fmt.Errorf("RECOMMEND_CONTENT_WEIGHT + RECOMMEND_POPULARITY_WEIGHT must equal 1, got %v",
			r.ContentWeight+r.PopularityWeight)
	}
	return nil
}

func (c *Config) validateWeights() error {
	w := c.Weights
	for name, v := range map[string]float64{"WEIGHT_LIKE": w.Like, "WEIGHT_DISLIKE": w.Dislike, "WEIGHT_WATCH": w.Watch} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if err := validateHTTPURL(c.Catalog.URL, "CATALOG_URL"); err != nil {
		return err
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive")
	}
	if c.Catalog.RequestsPerSecond <= 0 {
		return fmt.Errorf("CATALOG_REQUESTS_PER_SECOND must be positive")
	}
	if c.Catalog.Burst < 1 {
		return fmt.Errorf("CATALOG_BURST must be at least 1")
	}
	if c.Catalog.MaxBatchSize < 1 {
		return fmt.Errorf("CATALOG_MAX_BATCH_SIZE must be at least 1")
	}
	if c.Catalog.BreakerFailureThreshold <= 0 || c.Catalog.BreakerFailureThreshold > 1 {
		return fmt.Errorf("CATALOG_BREAKER_FAILURE_THRESHOLD must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if err := validateRedisURL(c.Redis.URL); err != nil {
		return fmt.Errorf("REDIS_URL is invalid: %w", err)
	}
	if c.Redis.TTL <= 0 {
		return fmt.Errorf("REDIS_TTL must be positive")
	}
	return nil
}

// validAuthModes defines the allowed authentication modes
var validAuthModes = map[string]bool{
	"none": true,
	"jwt":  true,
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}

	// Refuse to start with AUTH_MODE=none in production environment
	if c.Security.AuthMode == "none" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production. " +
			"Either set AUTH_MODE=jwt or use ENVIRONMENT=development for testing purposes")
	}

	if c.Security.AuthMode == "jwt" {
		if err := c.validateJWTSecret(); err != nil {
			return err
		}
	}

	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Set specific origins: CORS_ORIGINS=https://yourdomain.com,https://app.yourdomain.com")
	}

	return c.validateRateLimits()
}

// validateJWTSecret validates the JWT secret configuration
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"TODO",
	"FIXME",
	"XXX",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
