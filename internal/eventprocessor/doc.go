// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package eventprocessor consumes catalog and engagement events from NATS
// JetStream through Watermill and folds them into the recommendation read
// model: item genre features and per-user genre profiles.
//
// # Data Flow
//
// Upstream services publish to six topics. Each topic has its own durable
// consumer handler, so a slow or failing topic never blocks the others:
//
//	Catalog service                      NATS JetStream
//	  created-book ─────────┐          ┌──────────────────────┐
//	  updated-book ─────────┤          │                      │
//	  deleted-book ─────────┼─────────▶│ RECOMMENDATION_EVENTS│
//	  book-popularity-updated ─┘       │                      │
//	Engagement service      │          │                      │
//	  engagement-created ───┤          │                      │
//	  created-rating ───────┘          └──────────┬───────────┘
//	                                              │ durable consumer per topic
//	                                              ▼
//	                    ┌─────────────────────────────────────┐
//	                    │ Router handler "recsync.<topic>"    │
//	                    │   DeadLetter ─▶ Recoverer ─▶ Decode │
//	                    │                        ─▶ Handlers  │
//	                    └──────────┬──────────────────┬───────┘
//	                               │ ok               │ failed
//	                               ▼                  ▼
//	                    ┌──────────────────┐  ┌────────────────┐
//	                    │ ItemStore        │  │ DLQ (memory +  │
//	                    │ ProfileStore     │  │ DuckDB mirror) │
//	                    │ (badger)         │  └───────┬────────┘
//	                    └──────────────────┘          │ auto retry / admin
//	                                                  ▼
//	                                    Handlers.Replay or Publisher.Redrive
//
// # Failure Handling
//
// Decoding failures are PermanentErrors and go straight to the DLQ. Store
// failures and references to items that have not arrived yet are
// RetryableErrors: DeadLetter retries them in-process with exponential
// backoff (RetryPolicy) and then dead-letters them with their category. A
// message is acked once it is in the DLQ; a DLQ write failure nacks it so
// JetStream redelivers.
//
// The AutoRetryWorker replays due DLQ entries on their own, slower
// schedule (DLQConfig backoff), which resolves ordering gaps such as a
// rating delivered before its book. Operators can list, retry, redrive,
// or delete entries through DLQAdmin.
//
// # Idempotency
//
// Handlers tolerate redelivery: a repeated ItemCreated is a no-op, deletes
// of missing items succeed, and each profile remembers the items it has
// counted so a replayed interaction does not count twice.
//
// # Key Components
//
//   - EmbeddedServer: optional in-process NATS server with JetStream
//   - StreamInitializer: creates or updates the intake stream
//   - Subscriber / Publisher: Watermill NATS adapters; Publisher carries a
//     circuit breaker and implements Redriver
//   - Decoder: topic payloads to typed Events
//   - Handlers: applies Events to the stores
//   - Router: per-topic consumer handlers with DeadLetter and Recoverer
//   - DLQHandler / PersistentDLQHandler: the dead letter queue
//   - HealthChecker: component health for the readiness endpoint
//
// # Usage Example
//
//	dec, _ := eventprocessor.NewDecoder(eventprocessor.DefaultTopics())
//	handlers := eventprocessor.NewHandlers(items, profiles, models.DefaultWeights())
//
//	dlq, _ := eventprocessor.NewDLQHandler(eventprocessor.DefaultDLQConfig())
//	deadLetter := eventprocessor.NewDeadLetter(eventprocessor.DefaultRetryPolicy(), dlq, dec)
//
//	router, _ := eventprocessor.NewRouter(nil, deadLetter, logger)
//	for _, topic := range eventprocessor.DefaultTopics() {
//	    router.AddTopicHandler(topic, subscriber, handlers.TopicHandler(dec, topic))
//	}
//	running, done := router.RunAsync(ctx)
package eventprocessor
