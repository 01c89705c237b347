// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

//go:build integration

package testinfra

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestIsDockerAvailable(t *testing.T) {
	available := IsDockerAvailable()
	t.Logf("Docker available: %v", available)
}

func TestWaitForReady(t *testing.T) {
	calls := 0
	err := WaitForReady(context.Background(), func() bool {
		calls++
		return calls == 2
	}, 5*time.Second)
	if err != nil || calls != 2 {
		t.Errorf("WaitForReady() = %v after %d calls", err, calls)
	}

	if err := WaitForReady(context.Background(), func() bool { return false }, 10*time.Millisecond); err == nil {
		t.Error("WaitForReady() should time out")
	}
}

func TestContainers_Start(t *testing.T) {
	ctx := context.Background()

	r, err := NewRedisContainer(ctx, t)
	if err != nil {
		t.Fatalf("NewRedisContainer() error = %v", err)
	}
	if !strings.HasPrefix(r.URL, "redis://") {
		t.Errorf("redis URL = %q", r.URL)
	}

	n, err := NewNATSContainer(ctx, t)
	if err != nil {
		t.Fatalf("NewNATSContainer() error = %v", err)
	}
	if !strings.HasPrefix(n.URL, "nats://") {
		t.Errorf("nats URL = %q", n.URL)
	}
}
