// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*MockService)(nil)

func TestMockService(t *testing.T) {
	t.Run("runs until context canceled", func(t *testing.T) {
		svc := NewMockService("test")
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if svc.StartCount() != 1 || svc.StopCount() != 1 {
			t.Errorf("starts/stops = %d/%d", svc.StartCount(), svc.StopCount())
		}
	})

	t.Run("returns ErrDoNotRestart for permanent completion", func(t *testing.T) {
		svc := NewMockService("one-shot")
		svc.SetError(suture.ErrDoNotRestart)

		if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("expected ErrDoNotRestart, got %v", err)
		}
	})

	t.Run("fails N times then runs", func(t *testing.T) {
		svc := NewMockService("retry-test")
		svc.SetFailCount(2)

		for i := 0; i < 2; i++ {
			if err := svc.Serve(context.Background()); err == nil || err.Error() != "simulated failure" {
				t.Errorf("call %d should fail, got %v", i+1, err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("third call should run until timeout, got %v", err)
		}
	})

	t.Run("String returns service name", func(t *testing.T) {
		if got := NewMockService("my-service").String(); got != "my-service" {
			t.Errorf("expected 'my-service', got %q", got)
		}
	})
}

func TestErrTerminateSupervisorTree(t *testing.T) {
	svc := NewMockService("terminator")
	svc.SetError(suture.ErrTerminateSupervisorTree)

	sup := suture.NewSimple("test-supervisor")
	sup.Add(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := sup.Serve(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("supervisor kept running after ErrTerminateSupervisorTree")
	}
	if svc.StartCount() != 1 {
		t.Errorf("expected exactly 1 start, got %d", svc.StartCount())
	}
}
