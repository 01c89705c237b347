// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the API router.

# Available Metrics

Feature store:
  - store_operation_duration_seconds (histogram) labels: store, operation
  - store_operation_errors_total (counter) labels: store, operation, error_type
  - profile_version_conflicts_total (counter)
  - store_items (gauge)

Event intake:
  - events_received_total (counter) labels: kind
  - events_processed_total (counter) labels: kind, outcome
  - event_handler_duration_seconds (histogram) labels: kind
  - event_retries_total (counter) labels: topic
  - dlq_* gauges and counters for the dead letter queue

Read path:
  - api_requests_total, api_request_duration_seconds, api_active_requests
  - recommendations_served_total, recommendation_duration_seconds labels: source
  - recommendation_top_ups_total, recommendation_enrichment_failures_total
  - catalog_request_duration_seconds, catalog_request_errors_total
  - cache_hits_total, cache_misses_total labels: cache
  - circuit_breaker_state (0=closed, 1=half-open, 2=open) labels: name

# Usage

	metrics.RecordStoreOperation("item", "create", time.Since(start), err)
	metrics.RecordRecommendation("popular", time.Since(start), false)

Errors implementing MetricLabel() string are labelled by that value; other
errors are labelled by their message truncated to 50 characters.
*/
package metrics
