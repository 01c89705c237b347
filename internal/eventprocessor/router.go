// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	// ThrottlePerSecond caps messages per second across all handlers
	// (0 = disabled).
	ThrottlePerSecond int64
}

// DefaultRouterConfig returns production defaults for the Router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:      30 * time.Second,
		ThrottlePerSecond: 0,
	}
}

// Router wraps the Watermill Router. Each intake topic gets its own
// consumer handler wrapped as DeadLetter(Recoverer(handler)), so panics are
// retried and dead-lettered like any other failure.
type Router struct {
	router     *message.Router
	config     RouterConfig
	logger     watermill.LoggerAdapter
	deadLetter *DeadLetter
	running    atomic.Bool

	mu       sync.Mutex
	handlers map[string]*message.Handler
}

// NewRouter creates a Watermill Router. deadLetter may be nil, in which case
// handler failures are nacked for broker redelivery.
func NewRouter(cfg *RouterConfig, deadLetter *DeadLetter, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	return &Router{
		router:     wmRouter,
		config:     *cfg,
		logger:     logger,
		deadLetter: deadLetter,
		handlers:   make(map[string]*message.Handler),
	}, nil
}

// AddTopicHandler registers the consumer for one topic.
func (r *Router) AddTopicHandler(topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) *message.Handler {
	name := "recsync." + topic
	h := r.router.AddConsumerHandler(name, topic, subscriber, handler)
	if r.deadLetter != nil {
		h.AddMiddleware(r.deadLetter.ForTopic(topic))
	}
	h.AddMiddleware(middleware.Recoverer)

	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
	return h
}

// HandlerCount returns the number of registered handlers.
func (r *Router) HandlerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

// Run starts the router and blocks until ctx is canceled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// RunAsync starts the router in a goroutine. running closes once the
// handlers are consuming. done receives Run's result and is then closed, so
// a router that fails to subscribe is reported instead of never starting.
func (r *Router) RunAsync(ctx context.Context) (running <-chan struct{}, done <-chan error) {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		err := r.Run(ctx)
		if err != nil {
			r.logger.Error("Router error", err, nil)
		}
		errCh <- err
	}()
	return r.router.Running(), errCh
}

// Running returns a channel that closes when the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}

// IsRunning returns whether the router is currently processing messages.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}
