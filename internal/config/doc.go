// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package config provides centralized configuration management for Recsync.

Configuration is loaded with Koanf v2 in three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/recsync/config.yaml or /etc/recsync/config.yml
 3. Environment variables listed in the envTransformFunc mapping table

Unmapped environment variables are ignored.

# Sections

  - server: HTTP listener (HTTP_PORT, HTTP_HOST, HTTP_TIMEOUT, ENVIRONMENT)
  - logging: zerolog level and format (LOG_LEVEL, LOG_FORMAT, LOG_CALLER)
  - nats: JetStream connection, stream and router retry policy (NATS_*)
  - topics: inbound topic per event kind (TOPIC_*)
  - store: BadgerDB feature store (STORE_*)
  - dlq: dead letter queue persistence and auto-retry (DLQ_*)
  - recommend: retrieval limits and blend weights (RECOMMEND_*)
  - weights: interaction weights applied to genre scores (WEIGHT_*)
  - catalog: metadata client, rate limit and circuit breaker (CATALOG_*)
  - redis: optional metadata cache (REDIS_*)
  - security: bearer token validation, rate limiting, CORS, Casbin

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal(err)
	}

Validate runs as part of loading. A jwt auth mode requires JWT_SECRET of at
least 32 characters.
*/
package config
