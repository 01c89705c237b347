// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventLogger logs the lifecycle of domain events through the intake
// layer with a consistent field set: topic, kind, message_id, key.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger creates a logger for the event processor.
func NewEventLogger() *EventLogger {
	return &EventLogger{logger: WithComponent("eventprocessor")}
}

// NewEventLoggerWithLogger creates an EventLogger over l.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEventLoggerWithLogger(l zerolog.Logger) *EventLogger {
	return &EventLogger{logger: l.With().Str("component", "eventprocessor").Logger()}
}

func (e *EventLogger) with(ctx context.Context) zerolog.Logger {
	lctx := e.logger.With()
	if id := MessageIDFromContext(ctx); id != "" {
		lctx = lctx.Str("message_id", id)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		lctx = lctx.Str("correlation_id", id)
	}
	return lctx.Logger()
}

// Applied logs a handler that changed derived state.
func (e *EventLogger) Applied(ctx context.Context, kind, key string, d time.Duration) {
	l := e.with(ctx)
	l.Debug().Str("kind", kind).Str("key", key).Dur("duration", d).Msg("Event applied")
}

// NoOp logs an event that was accepted without changing state.
func (e *EventLogger) NoOp(ctx context.Context, kind, key, reason string) {
	l := e.with(ctx)
	l.Info().Str("kind", kind).Str("key", key).Str("reason", reason).Msg("Event ignored")
}

// Retrying logs an in-process retry of a retryable failure.
func (e *EventLogger) Retrying(ctx context.Context, topic string, attempt int, backoff time.Duration, err error) {
	l := e.with(ctx)
	l.Warn().Err(err).
		Str("topic", topic).
		Int("attempt", attempt).
		Dur("backoff", backoff).
		Msg("Event handling failed, retrying")
}

// BudgetExhausted logs retries cut short before the broker ack deadline.
func (e *EventLogger) BudgetExhausted(ctx context.Context, topic string, attempts int, budget time.Duration, err error) {
	l := e.with(ctx)
	l.Warn().Err(err).
		Str("topic", topic).
		Int("attempts", attempts).
		Dur("budget", budget).
		Msg("Retry budget exhausted")
}

// DeadLettered logs a message moved to the DLQ.
func (e *EventLogger) DeadLettered(ctx context.Context, topic, category string, attempts int, err error) {
	l := e.with(ctx)
	l.Error().Err(err).
		Str("topic", topic).
		Str("category", category).
		Int("attempts", attempts).
		Msg("Event dead-lettered")
}

// Rejected logs a payload that could not be decoded.
func (e *EventLogger) Rejected(ctx context.Context, topic string, err error) {
	l := e.with(ctx)
	l.Warn().Err(err).Str("topic", topic).Msg("Malformed event payload")
}
