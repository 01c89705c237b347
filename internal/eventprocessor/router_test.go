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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

func TestDefaultRouterConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRouterConfig()
	if cfg.CloseTimeout != 30*time.Second {
		t.Errorf("CloseTimeout = %v, want %v", cfg.CloseTimeout, 30*time.Second)
	}
	if cfg.ThrottlePerSecond != 0 {
		t.Errorf("ThrottlePerSecond = %d, want 0", cfg.ThrottlePerSecond)
	}
}

func TestNewRouter_Defaults(t *testing.T) {
	t.Parallel()

	r, err := NewRouter(nil, nil, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if r.config.CloseTimeout != 30*time.Second {
		t.Errorf("config = %+v", r.config)
	}
	if r.IsRunning() {
		t.Error("new router reported running")
	}
}

func TestNewRouter_WithThrottle(t *testing.T) {
	t.Parallel()

	cfg := DefaultRouterConfig()
	cfg.ThrottlePerSecond = 100
	r, err := NewRouter(&cfg, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if r.config.ThrottlePerSecond != 100 {
		t.Errorf("ThrottlePerSecond = %d", r.config.ThrottlePerSecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRouter_EndToEnd(t *testing.T) {
	t.Parallel()
	logger := watermill.NopLogger{}

	handlers, items, profiles := newTestHandlers(t)
	dec := newTestDecoder(t)
	dlq := newTestDLQ(t, nil)
	dl, _ := newTestDeadLetter(t, 1, dlq)

	pubsub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, logger)
	t.Cleanup(func() { _ = pubsub.Close() })

	r, err := NewRouter(nil, dl, logger)
	if err != nil {
		t.Fatal(err)
	}
	for _, topic := range DefaultTopics() {
		r.AddTopicHandler(topic, pubsub, handlers.TopicHandler(dec, topic))
	}
	if r.HandlerCount() != len(Kinds()) {
		t.Errorf("HandlerCount() = %d, want %d", r.HandlerCount(), len(Kinds()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	running, _ := r.RunAsync(ctx)
	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	if !r.IsRunning() {
		t.Error("IsRunning() = false after start")
	}

	item, user := uuid.New(), uuid.New()
	publish := func(topic, payload string) {
		t.Helper()
		if err := pubsub.Publish(topic, message.NewMessage(uuid.NewString(), []byte(payload))); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	publish("created-book", fmt.Sprintf(`{"bookId":%q,"genres":["classics"]}`, item))
	waitFor(t, "item feature", func() bool {
		_, err := items.Get(context.Background(), item)
		return err == nil
	})

	publish("created-rating", fmt.Sprintf(`{"userId":%q,"bookId":%q,"stars":4}`, user, item))
	waitFor(t, "profile update", func() bool {
		p, err := profiles.Get(context.Background(), user)
		return err == nil && p.GenreScores["CLASSICS"] == 4
	})

	publish("created-book", `{"bookId":"not-a-uuid"}`)
	waitFor(t, "dead-lettered payload", func() bool {
		return len(dlq.List()) == 1
	})
	if e := dlq.List()[0]; e.Topic != "created-book" || e.Category != ErrorCategoryValidation {
		t.Errorf("DLQ entry = %s/%s", e.Topic, e.Category)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	waitFor(t, "router stop", func() bool { return !r.IsRunning() })
}

type failingSubscriber struct{ err error }

func (s failingSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, s.err
}

func (s failingSubscriber) Close() error { return nil }

func TestRouter_RunAsyncReportsSubscribeFailure(t *testing.T) {
	t.Parallel()

	r, err := NewRouter(nil, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	subErr := errors.New("subject does not match consumer")
	r.AddTopicHandler("created-book", failingSubscriber{err: subErr}, func(*message.Message) error { return nil })

	running, done := r.RunAsync(context.Background())
	select {
	case <-running:
		t.Fatal("router reported running after a failed subscribe")
	case err := <-done:
		if err == nil {
			t.Fatal("RunAsync() reported success, want subscribe error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunAsync() neither started nor failed")
	}
	if r.IsRunning() {
		t.Error("IsRunning() = true after failed start")
	}
}
