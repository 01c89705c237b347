// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package services

import (
	"context"
	"fmt"
	"time"
)

// IntakeRunner is the lifecycle of the event intake components: embedded
// NATS server, stream provisioning, subscriber, router and publisher.
// Satisfied by *IntakeComponents in cmd/server.
type IntakeRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// NATSComponentsService runs the intake components under supervision.
//
// A Start failure is returned so suture restarts the service with backoff;
// the durable consumer resumes from its last acknowledged message.
type NATSComponentsService struct {
	components      IntakeRunner
	shutdownTimeout time.Duration
	name            string
}

// NewNATSComponentsService creates the wrapper with a 10s shutdown timeout.
func NewNATSComponentsService(components IntakeRunner) *NATSComponentsService {
	return NewNATSComponentsServiceWithTimeout(components, 10*time.Second)
}

// NewNATSComponentsServiceWithTimeout creates the wrapper with a custom
// shutdown timeout. Non-positive values use 10s.
func NewNATSComponentsServiceWithTimeout(components IntakeRunner, shutdownTimeout time.Duration) *NATSComponentsService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSComponentsService{
		components:      components,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-intake",
	}
}

// Serve implements suture.Service.
func (s *NATSComponentsService) Serve(ctx context.Context) error {
	if err := s.components.Start(ctx); err != nil {
		return fmt.Errorf("intake start failed: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.components.Shutdown(shutdownCtx)

	return ctx.Err()
}

func (s *NATSComponentsService) String() string {
	return s.name
}
