// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
)

// PublishBreaker stops publishing to a broker that keeps failing. Publishes
// carry no result, so the breaker's value type is empty.
type PublishBreaker = gobreaker.CircuitBreaker[struct{}]

// NewPublishBreaker opens after cfg.FailureThreshold consecutive broker
// failures. A publish abandoned by its caller's context does not count.
func NewPublishBreaker(cfg CircuitBreakerConfig) *PublishBreaker {
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsExcluded:    callerAbandoned,
		OnStateChange: reportBreakerTransition,
	})
}

func callerAbandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func reportBreakerTransition(name string, from, to gobreaker.State) {
	logging.Warn().
		Str("breaker", name).
		Stringer("from", from).
		Stringer("to", to).
		Msg("Publish breaker changed state")
	metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
}

// guard runs publish through cb, or directly when cb is nil.
func guard(cb *PublishBreaker, publish func() error) error {
	if cb == nil {
		return publish()
	}
	_, err := cb.Execute(func() (struct{}, error) {
		return struct{}{}, publish()
	})
	return err
}

// breakerState names cb's state for health details. A nil breaker is
// "disabled".
func breakerState(cb *PublishBreaker) string {
	if cb == nil {
		return "disabled"
	}
	return cb.State().String()
}
