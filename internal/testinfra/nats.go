// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultNATSImage is the NATS image used by integration tests.
const DefaultNATSImage = "nats:2.12-alpine"

// NATSContainer is a disposable NATS server with JetStream enabled.
type NATSContainer struct {
	testcontainers.Container

	// URL is the nats:// client URL.
	URL string
}

// NewNATSContainer starts NATS with JetStream and registers its cleanup
// with t.
func NewNATSContainer(ctx context.Context, t *testing.T) (*NATSContainer, error) {
	t.Helper()
	SkipIfNoDocker(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultNATSImage,
			ExposedPorts: []string{"4222/tcp"},
			Cmd:          []string{"-js"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	CleanupContainer(t, container)
	if err != nil {
		return nil, fmt.Errorf("create nats container: %w", err)
	}

	addr, err := container.PortEndpoint(ctx, "4222/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("get nats endpoint: %w", err)
	}
	return &NATSContainer{Container: container, URL: "nats://" + addr}, nil
}
