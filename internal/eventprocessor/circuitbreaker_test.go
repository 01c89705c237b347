// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func testBreaker(name string, threshold uint32, openFor time.Duration) *PublishBreaker {
	return NewPublishBreaker(CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          openFor,
		FailureThreshold: threshold,
	})
}

func TestPublishBreaker_TripsOnBrokerFailures(t *testing.T) {
	t.Parallel()

	brokerDown := errors.New("nats: no responders available for request")
	tests := []struct {
		name     string
		failures []error
		want     string
	}{
		{"below threshold", []error{brokerDown, brokerDown}, "closed"},
		{"at threshold", []error{brokerDown, brokerDown, brokerDown}, "open"},
		{"success resets the run", []error{brokerDown, brokerDown, nil, brokerDown}, "closed"},
		{"caller cancellations ignored", []error{context.Canceled, context.DeadlineExceeded, fmt.Errorf("publish: %w", context.Canceled)}, "closed"},
		{"cancellation does not reset the run", []error{brokerDown, brokerDown, context.Canceled, brokerDown}, "open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cb := testBreaker("trip-"+tt.name, 3, time.Minute)
			for _, failure := range tt.failures {
				failure := failure
				_ = guard(cb, func() error { return failure })
			}
			if got := breakerState(cb); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGuard_OpenBreakerSkipsPublish(t *testing.T) {
	t.Parallel()
	cb := testBreaker("skip", 1, time.Minute)
	_ = guard(cb, func() error { return errors.New("connection refused") })

	called := false
	err := guard(cb, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
	if called {
		t.Error("publish ran through an open breaker")
	}
}

func TestGuard_NilBreakerPassesThrough(t *testing.T) {
	t.Parallel()
	want := errors.New("stream not found")
	if err := guard(nil, func() error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
	if got := breakerState(nil); got != "disabled" {
		t.Errorf("breakerState(nil) = %s, want disabled", got)
	}
}

func TestPublishBreaker_HalfOpenRecovers(t *testing.T) {
	t.Parallel()
	cb := testBreaker("recover", 1, 50*time.Millisecond)
	_ = guard(cb, func() error { return errors.New("connection refused") })
	if got := breakerState(cb); got != "open" {
		t.Fatalf("state = %s, want open", got)
	}

	time.Sleep(80 * time.Millisecond)
	if got := breakerState(cb); got != "half-open" {
		t.Fatalf("state after timeout = %s, want half-open", got)
	}
	if err := guard(cb, func() error { return nil }); err != nil {
		t.Fatalf("half-open publish error = %v", err)
	}
	if got := breakerState(cb); got != "closed" {
		t.Errorf("state after success = %s, want closed", got)
	}
}

func TestNewPublishBreaker_Name(t *testing.T) {
	t.Parallel()
	cb := NewPublishBreaker(DefaultCircuitBreakerConfig("nats-publisher"))
	if cb.Name() != "nats-publisher" {
		t.Errorf("Name() = %s, want nats-publisher", cb.Name())
	}
}
