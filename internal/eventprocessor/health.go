// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// HealthStatusType represents the overall health status.
type HealthStatusType string

const (
	HealthStatusHealthy   HealthStatusType = "healthy"
	HealthStatusDegraded  HealthStatusType = "degraded"
	HealthStatusUnhealthy HealthStatusType = "unhealthy"
)

// HealthConfig holds configuration for health checking.
type HealthConfig struct {
	// Timeout bounds each component check.
	Timeout time.Duration
}

// DefaultHealthConfig returns sensible defaults for health checking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{Timeout: 5 * time.Second}
}

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Healthy   bool                   `json:"healthy"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Name      string                 `json:"name"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckable is implemented by components that support health checking.
type HealthCheckable interface {
	HealthCheck(ctx context.Context) ComponentHealth
}

// HealthCheckFunc adapts a function to HealthCheckable.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// HealthCheck calls f.
func (f HealthCheckFunc) HealthCheck(ctx context.Context) ComponentHealth {
	return f(ctx)
}

// OverallHealth represents the aggregated health status of all components.
type OverallHealth struct {
	Healthy    bool                       `json:"healthy"`
	Status     HealthStatusType           `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker runs health checks for the registered components.
type HealthChecker struct {
	config     HealthConfig
	mu         sync.RWMutex
	components map[string]HealthCheckable
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(cfg HealthConfig) *HealthChecker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHealthConfig().Timeout
	}
	return &HealthChecker{
		config:     cfg,
		components: make(map[string]HealthCheckable),
	}
}

// RegisterComponent registers a component for health checking.
func (h *HealthChecker) RegisterComponent(name string, component HealthCheckable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component
}

// UnregisterComponent removes a component from health checking.
func (h *HealthChecker) UnregisterComponent(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.components, name)
}

// CheckAll checks every registered component concurrently. Any unhealthy
// component makes the whole unhealthy; a degraded one degrades it.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	h.mu.RLock()
	componentsCopy := make(map[string]HealthCheckable, len(h.components))
	for name, comp := range h.components {
		componentsCopy[name] = comp
	}
	h.mu.RUnlock()

	overall := OverallHealth{
		Healthy:    true,
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth, len(componentsCopy)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, component := range componentsCopy {
		wg.Add(1)
		go func(name string, comp HealthCheckable) {
			defer wg.Done()
			result := h.run(ctx, name, comp)

			mu.Lock()
			defer mu.Unlock()
			overall.Components[name] = result
			if !result.Healthy {
				overall.Healthy = false
				overall.Status = HealthStatusUnhealthy
			} else if result.Degraded && overall.Status == HealthStatusHealthy {
				overall.Status = HealthStatusDegraded
			}
		}(name, component)
	}

	wg.Wait()
	return overall
}

// CheckComponent performs a health check on a specific component.
func (h *HealthChecker) CheckComponent(ctx context.Context, name string) ComponentHealth {
	h.mu.RLock()
	component, exists := h.components[name]
	h.mu.RUnlock()

	if !exists {
		return ComponentHealth{
			Name:      name,
			Healthy:   false,
			Error:     "component not found",
			LastCheck: time.Now(),
		}
	}
	return h.run(ctx, name, component)
}

func (h *HealthChecker) run(ctx context.Context, name string, comp HealthCheckable) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resultCh := make(chan ComponentHealth, 1)
	go func() {
		resultCh <- comp.HealthCheck(checkCtx)
	}()

	var result ComponentHealth
	select {
	case result = <-resultCh:
	case <-checkCtx.Done():
		result = ComponentHealth{Healthy: false, Error: "health check timeout"}
	}
	result.Name = name
	result.LastCheck = time.Now()
	return result
}

// HealthCheck reports the DLQ as degraded once it is more than half full
// or holds entries that exhausted their retries.
func (h *DLQHandler) HealthCheck(_ context.Context) ComponentHealth {
	stats := h.Stats()

	details := map[string]interface{}{
		"entry_count":   stats.TotalEntries,
		"exhausted":     stats.Exhausted,
		"total_added":   stats.TotalAdded,
		"total_removed": stats.TotalRemoved,
		"total_retries": stats.TotalRetries,
		"total_expired": stats.TotalExpired,
	}
	if !stats.OldestEntry.IsZero() {
		details["oldest_entry"] = stats.OldestEntry.Format(time.RFC3339)
		details["oldest_entry_age"] = h.now().Sub(stats.OldestEntry).String()
	}

	switch {
	case stats.TotalEntries > int64(h.config.MaxEntries/2):
		return ComponentHealth{Healthy: true, Degraded: true, Message: "DLQ is filling up", Details: details}
	case stats.Exhausted > 0:
		return ComponentHealth{Healthy: true, Degraded: true, Message: "DLQ holds exhausted entries", Details: details}
	}

	return ComponentHealth{Healthy: true, Message: "DLQ handler is operational", Details: details}
}

// HealthCheck reports the publisher unhealthy when closed or when its
// circuit breaker is open.
func (p *Publisher) HealthCheck(_ context.Context) ComponentHealth {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return ComponentHealth{Healthy: false, Error: "publisher is closed"}
	}

	details := map[string]interface{}{}
	details["circuit_breaker_state"] = breakerState(p.breaker)
	if p.breaker != nil {
		switch p.breaker.State() {
		case gobreaker.StateOpen:
			return ComponentHealth{Healthy: false, Error: "circuit breaker is open", Details: details}
		case gobreaker.StateHalfOpen:
			return ComponentHealth{Healthy: true, Degraded: true, Message: "circuit breaker is half-open", Details: details}
		}
	}

	return ComponentHealth{Healthy: true, Message: "publisher is operational", Details: details}
}

// HealthCheck reports whether the router is consuming.
func (r *Router) HealthCheck(_ context.Context) ComponentHealth {
	details := map[string]interface{}{"handlers": r.HandlerCount()}
	if !r.IsRunning() {
		return ComponentHealth{Healthy: false, Error: "router is not running", Details: details}
	}
	return ComponentHealth{Healthy: true, Message: "router is running", Details: details}
}

// HealthCheck reports whether the embedded server accepts connections
// with JetStream enabled.
func (s *EmbeddedServer) HealthCheck(_ context.Context) ComponentHealth {
	details := map[string]interface{}{"url": s.clientURL}
	if !s.IsRunning() {
		return ComponentHealth{Healthy: false, Error: "NATS server is not running", Details: details}
	}
	if !s.JetStreamEnabled() {
		return ComponentHealth{Healthy: false, Error: "JetStream is disabled", Details: details}
	}
	return ComponentHealth{Healthy: true, Message: "NATS server is running", Details: details}
}

// HealthCheck reports whether the intake stream exists.
func (s *StreamInitializer) HealthCheck(ctx context.Context) ComponentHealth {
	details := map[string]interface{}{"stream": s.config.Name}
	if !s.IsHealthy(ctx) {
		return ComponentHealth{Healthy: false, Error: "stream is unavailable", Details: details}
	}
	return ComponentHealth{Healthy: true, Message: "stream is available", Details: details}
}
