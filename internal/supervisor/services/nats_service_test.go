// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*NATSComponentsService)(nil)

type mockIntake struct {
	running  atomic.Bool
	started  chan struct{}
	shutdown atomic.Int32
	startErr error
}

func newMockIntake() *mockIntake {
	return &mockIntake{started: make(chan struct{}, 1)}
}

func (m *mockIntake) Start(context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.running.Store(true)
	m.started <- struct{}{}
	return nil
}

func (m *mockIntake) Shutdown(ctx context.Context) {
	if _, ok := ctx.Deadline(); !ok {
		panic("shutdown context has no deadline")
	}
	m.shutdown.Add(1)
	m.running.Store(false)
}

func (m *mockIntake) IsRunning() bool { return m.running.Load() }

func TestNATSComponentsService_Lifecycle(t *testing.T) {
	mock := newMockIntake()
	svc := NewNATSComponentsService(mock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case <-mock.started:
	case <-time.After(time.Second):
		t.Fatal("intake was not started")
	}
	if !mock.IsRunning() {
		t.Error("intake should be running")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("service did not stop in time")
	}

	if mock.IsRunning() || mock.shutdown.Load() != 1 {
		t.Errorf("running=%v shutdowns=%d, want stopped once", mock.IsRunning(), mock.shutdown.Load())
	}
}

func TestNATSComponentsService_StartError(t *testing.T) {
	mock := newMockIntake()
	mock.startErr = errors.New("nats: no servers available for connection")
	svc := NewNATSComponentsService(mock)

	err := svc.Serve(context.Background())
	if !errors.Is(err, mock.startErr) {
		t.Errorf("err = %v, want wrapped start error", err)
	}
	if mock.shutdown.Load() != 0 {
		t.Error("Shutdown called after failed Start")
	}
}

func TestNATSComponentsService_Config(t *testing.T) {
	svc := NewNATSComponentsServiceWithTimeout(newMockIntake(), -time.Second)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want default 10s", svc.shutdownTimeout)
	}
	if svc.String() != "nats-intake" {
		t.Errorf("String() = %q", svc.String())
	}
}
