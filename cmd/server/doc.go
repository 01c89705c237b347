// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package main is the entry point for the Recsync server.

Recsync consumes catalog and engagement events from NATS JetStream, folds
them into item genre features and user taste profiles held in BadgerDB, and
serves ranked, metadata-enriched recommendations over HTTP.

# Application Architecture

Services run under a Suture v4 supervisor tree:

	RootSupervisor ("recsync")
	├── StorageSupervisor ("storage-layer")
	│   ├── store-gc (BadgerDB value log GC)
	│   ├── item-count (store size gauge)
	│   └── catalog-cache-sweep (local metadata cache expiry)
	├── IntakeSupervisor ("intake-layer")
	│   ├── nats-intake (embedded server, stream, router; NATS_ENABLED=true)
	│   └── dlq-auto-retry (scheduled DLQ replay and cleanup)
	└── APISupervisor ("api-layer")
	    └── http-server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config file
 2. Logging: zerolog with JSON/console output modes
 3. Feature store: BadgerDB item and profile stores
 4. Event handling: topic decoder, handlers, DLQ (DuckDB-backed when DLQ_PATH is set)
 5. Retrieval: catalog client with local LRU and optional Redis tiers
 6. Authentication: JWT or no-auth mode, Casbin authorization
 7. Supervisor tree and HTTP server

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Authentication
	AUTH_MODE=jwt                # jwt or none
	JWT_SECRET=<32+ chars>       # Required for JWT mode
	JWT_ISSUER=                  # Optional issuer check

	# Event intake
	NATS_ENABLED=true
	NATS_EMBEDDED=true
	NATS_URL=nats://127.0.0.1:4222
	NATS_STREAM_NAME=RECOMMENDATION_EVENTS

	# Topics
	TOPIC_ITEM_CREATED=created-book
	TOPIC_INTERACTION_CREATED=engagement-created
	TOPIC_RATING_CREATED=created-rating

	# Storage
	STORE_PATH=/data/recsync
	DLQ_PATH=/data/recsync-dlq.duckdb

	# Catalog enrichment
	CATALOG_URL=http://localhost:8081
	REDIS_ENABLED=false
	REDIS_URL=redis://localhost:6379/0

Changes to logging.level in the config file are applied without a restart.

# Signal Handling

The server shuts down gracefully on SIGINT and SIGTERM:
  - The HTTP server stops accepting connections and drains requests
  - The router finishes in-flight messages before the subscriber closes
  - The embedded NATS server stops last
  - The DLQ database and the feature store are closed

# Example Usage

Development with the embedded broker and no authentication:

	export AUTH_MODE=none
	export STORE_PATH=./data/store
	export NATS_STORE_DIR=./data/nats
	export DLQ_PATH=./data/dlq.duckdb
	./recsync

	curl -H 'X-User-ID: 3f1c...' localhost:8080/api/v1/recommendations?limit=5
*/
package main
