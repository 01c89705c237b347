// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/logging"
)

// Health component names registered by the intake pipeline.
const (
	healthNATSServer = "nats_server"
	healthStream     = "stream"
	healthPublisher  = "publisher"
	healthRouter     = "router"
)

// IntakeComponents owns the broker side of event intake: the optional
// embedded server, the stream, the subscriber, the router and the publisher
// used for DLQ redrive. Everything is built in Start and torn down in
// Shutdown so a supervisor restart reconnects from scratch.
type IntakeComponents struct {
	cfg       *config.Config
	serverCfg eventprocessor.ServerConfig
	decoder   *eventprocessor.Decoder
	handlers  *eventprocessor.Handlers
	dlq       eventprocessor.DeadLetterQueue
	health    *eventprocessor.HealthChecker
	logger    watermill.LoggerAdapter

	mu         sync.Mutex
	running    bool
	server     *eventprocessor.EmbeddedServer
	natsConn   *natsgo.Conn
	stream     *eventprocessor.StreamInitializer
	publisher  *eventprocessor.Publisher
	subscriber *eventprocessor.Subscriber
	router     *eventprocessor.Router
}

// NewIntakeComponents prepares the intake pipeline. Nothing connects until
// Start is called. health may be nil.
func NewIntakeComponents(
	cfg *config.Config,
	decoder *eventprocessor.Decoder,
	handlers *eventprocessor.Handlers,
	dlq eventprocessor.DeadLetterQueue,
	health *eventprocessor.HealthChecker,
) *IntakeComponents {
	return &IntakeComponents{
		cfg:       cfg,
		serverCfg: embeddedServerConfig(&cfg.NATS),
		decoder:   decoder,
		handlers:  handlers,
		dlq:       dlq,
		health:    health,
		logger:    watermill.NewSlogLogger(logging.NewSlogLogger()),
	}
}

// Start connects to NATS, ensures the stream, and starts consuming every
// intake topic. It returns once the router is running.
func (c *IntakeComponents) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	if err := c.build(ctx); err != nil {
		c.teardown(context.Background())
		c.mu.Unlock()
		return err
	}
	router := c.router
	c.running = true
	c.mu.Unlock()

	running, done := router.RunAsync(ctx)
	select {
	case <-running:
		logging.Info().Int("handlers", router.HandlerCount()).Msg("Event intake started")
		return nil
	case err := <-done:
		c.Shutdown(context.Background())
		if err == nil {
			err = errors.New("router stopped before it started consuming")
		}
		return fmt.Errorf("start router: %w", err)
	case <-ctx.Done():
		c.Shutdown(context.Background())
		return fmt.Errorf("context canceled while starting router: %w", ctx.Err())
	}
}

//nolint:gocyclo // sequential setup steps
func (c *IntakeComponents) build(ctx context.Context) error {
	natsCfg := &c.cfg.NATS
	natsURL := natsCfg.URL

	// Step 1: embedded server
	if natsCfg.EmbeddedServer {
		srv, err := eventprocessor.NewEmbeddedServer(&c.serverCfg)
		if err != nil {
			return err
		}
		c.server = srv
		natsURL = srv.ClientURL()
	} else {
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	// Step 2: connection and stream
	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	c.natsConn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := eventprocessor.StreamConfigFor(
		natsCfg.StreamName,
		c.cfg.Topics.All(),
		time.Duration(natsCfg.StreamRetentionDays)*24*time.Hour,
	)
	c.stream, err = eventprocessor.NewStreamInitializer(js, &streamCfg)
	if err != nil {
		return fmt.Errorf("create stream initializer: %w", err)
	}
	stream, err := c.stream.EnsureStream(ctx)
	if err != nil {
		return fmt.Errorf("ensure stream exists: %w", err)
	}
	info := stream.CachedInfo()
	logging.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Dur("max_age", info.Config.MaxAge).
		Msg("JetStream stream ready")

	// Step 3: publisher for redrive
	c.publisher, err = eventprocessor.NewPublisher(eventprocessor.DefaultPublisherConfig(natsURL), c.logger)
	if err != nil {
		return err
	}
	c.publisher.SetBreaker(eventprocessor.NewPublishBreaker(
		eventprocessor.DefaultCircuitBreakerConfig("nats-publisher")))

	// Step 4: subscriber bound to the stream
	subCfg := eventprocessor.DefaultSubscriberConfig(natsURL)
	subCfg.DurableName = natsCfg.DurableName
	subCfg.QueueGroup = natsCfg.QueueGroup
	if natsCfg.SubscribersCount > 0 {
		subCfg.SubscribersCount = natsCfg.SubscribersCount
	}
	if natsCfg.AckWaitTimeout > 0 {
		subCfg.AckWaitTimeout = natsCfg.AckWaitTimeout
	}
	if natsCfg.MaxDeliver != 0 {
		subCfg.MaxDeliver = natsCfg.MaxDeliver
	}
	if natsCfg.RouterCloseTimeout > 0 {
		subCfg.CloseTimeout = natsCfg.RouterCloseTimeout
	}
	subCfg.StreamName = streamCfg.Name
	c.subscriber, err = eventprocessor.NewSubscriber(&subCfg, c.logger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}

	// Step 5: router with one handler per topic
	routerCfg := eventprocessor.DefaultRouterConfig()
	if natsCfg.RouterCloseTimeout > 0 {
		routerCfg.CloseTimeout = natsCfg.RouterCloseTimeout
	}
	routerCfg.ThrottlePerSecond = int64(natsCfg.RouterThrottlePerSecond)

	policy := retryPolicyFrom(natsCfg)
	budget := eventprocessor.RetryBudgetFor(subCfg.AckWaitTimeout)
	if worst := policy.MaxTotalBackoff(); worst >= budget {
		logging.Warn().
			Dur("max_backoff", worst).
			Dur("retry_budget", budget).
			Msg("Retries can outlast the ack wait; slow deliveries will be dead-lettered early")
	}
	deadLetter := eventprocessor.NewDeadLetter(policy, c.dlq, c.decoder)
	deadLetter.SetRetryBudget(budget)
	c.router, err = eventprocessor.NewRouter(&routerCfg, deadLetter, c.logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	for _, topic := range c.cfg.Topics.All() {
		c.router.AddTopicHandler(topic, c.subscriber, c.handlers.TopicHandler(c.decoder, topic))
	}
	logging.Info().
		Int("retry", natsCfg.RouterRetryCount).
		Int("throttle", natsCfg.RouterThrottlePerSecond).
		Int("topics", c.router.HandlerCount()).
		Msg("Watermill Router created")

	c.registerHealth()
	return nil
}

func (c *IntakeComponents) registerHealth() {
	if c.health == nil {
		return
	}
	if c.server != nil {
		c.health.RegisterComponent(healthNATSServer, c.server)
	}
	c.health.RegisterComponent(healthStream, c.stream)
	c.health.RegisterComponent(healthPublisher, c.publisher)
	c.health.RegisterComponent(healthRouter, c.router)
}

// Shutdown stops consumption and closes every connection. Order:
//  1. Router (drains in-flight handlers)
//  2. Subscriber
//  3. Publisher
//  4. NATS connection
//  5. Embedded server last
func (c *IntakeComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false

	logging.Info().Msg("Shutting down event intake...")
	c.teardown(ctx)
	logging.Info().Msg("Event intake shutdown complete")
}

// teardown closes whatever build created. Callers hold c.mu.
func (c *IntakeComponents) teardown(ctx context.Context) {
	if c.health != nil {
		for _, name := range []string{healthRouter, healthPublisher, healthStream, healthNATSServer} {
			c.health.UnregisterComponent(name)
		}
	}
	if c.router != nil {
		if err := c.router.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing Router")
		}
		c.router = nil
	}
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
		c.subscriber = nil
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
		c.publisher = nil
	}
	c.stream = nil
	if c.natsConn != nil {
		c.natsConn.Close()
		c.natsConn = nil
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down NATS server")
		}
		c.server = nil
		logging.Info().Msg("Embedded NATS server stopped")
	}
}

// IsRunning reports whether intake is consuming.
func (c *IntakeComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Redrive republishes a DLQ entry through the current publisher. It fails
// with ErrNilPublisher while intake is stopped.
func (c *IntakeComponents) Redrive(ctx context.Context, entry *eventprocessor.DLQEntry) error {
	if c == nil {
		return eventprocessor.ErrNilPublisher
	}
	c.mu.Lock()
	pub := c.publisher
	c.mu.Unlock()
	if pub == nil {
		return eventprocessor.ErrNilPublisher
	}
	return pub.Redrive(ctx, entry)
}

// topicMap maps each event kind to its configured topic.
func topicMap(t config.TopicsConfig) eventprocessor.TopicMap {
	return eventprocessor.TopicMap{
		eventprocessor.KindItemCreated:        t.ItemCreated,
		eventprocessor.KindItemUpdated:        t.ItemUpdated,
		eventprocessor.KindItemDeleted:        t.ItemDeleted,
		eventprocessor.KindInteractionCreated: t.InteractionCreated,
		eventprocessor.KindRatingCreated:      t.RatingCreated,
		eventprocessor.KindPopularityUpdated:  t.PopularityUpdated,
	}
}

// retryPolicyFrom applies the router retry settings over the defaults.
func retryPolicyFrom(cfg *config.NATSConfig) *eventprocessor.RetryPolicy {
	p := eventprocessor.DefaultRetryPolicy()
	if cfg.RouterRetryCount >= 0 {
		p.MaxRetries = cfg.RouterRetryCount
	}
	if cfg.RouterRetryInitialInterval > 0 {
		p.InitialBackoff = cfg.RouterRetryInitialInterval
	}
	if cfg.RouterRetryMaxInterval > 0 {
		p.MaxBackoff = cfg.RouterRetryMaxInterval
	}
	if cfg.RouterRetryMultiplier > 0 {
		p.BackoffMultiplier = cfg.RouterRetryMultiplier
	}
	if cfg.RouterRetryJitter > 0 {
		p.JitterFraction = cfg.RouterRetryJitter
	}
	return p
}

// embeddedServerConfig listens on the host and port of the configured URL,
// falling back to 127.0.0.1:4222.
func embeddedServerConfig(cfg *config.NATSConfig) eventprocessor.ServerConfig {
	sc := eventprocessor.DefaultServerConfig()
	if cfg.StoreDir != "" {
		sc.StoreDir = cfg.StoreDir
	}
	if cfg.MaxMemory > 0 {
		sc.JetStreamMaxMem = cfg.MaxMemory
	}
	if cfg.MaxStore > 0 {
		sc.JetStreamMaxStore = cfg.MaxStore
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return sc
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return sc
	}
	if host != "" {
		sc.Host = host
	}
	if p, err := strconv.Atoi(port); err == nil && p > 0 {
		sc.Port = p
	}
	return sc
}
