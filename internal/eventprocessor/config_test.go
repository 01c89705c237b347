// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"testing"
	"time"
)

func TestDefaultSubscriberConfig(t *testing.T) {
	cfg := DefaultSubscriberConfig("nats://localhost:4222")

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"URL", cfg.URL, "nats://localhost:4222"},
		{"DurableName", cfg.DurableName, "recommendation-sync"},
		{"SubscribersCount", cfg.SubscribersCount, 1},
		{"AckWaitTimeout", cfg.AckWaitTimeout, 30 * time.Second},
		{"MaxDeliver", cfg.MaxDeliver, 5},
		{"MaxReconnects", cfg.MaxReconnects, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultSubscriberConfig().%s = %v, expected %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestDefaultPublisherConfig(t *testing.T) {
	cfg := DefaultPublisherConfig("nats://localhost:4222")
	if cfg.URL != "nats://localhost:4222" {
		t.Errorf("URL = %s", cfg.URL)
	}
	if !cfg.EnableTrackMsgID {
		t.Error("expected EnableTrackMsgID=true")
	}
	if cfg.ReconnectBuffer != 8*1024*1024 {
		t.Errorf("ReconnectBuffer = %d", cfg.ReconnectBuffer)
	}
}

func TestDefaultStreamConfig(t *testing.T) {
	cfg := DefaultStreamConfig()

	if cfg.Name != "RECOMMENDATION_EVENTS" {
		t.Errorf("Name = %s", cfg.Name)
	}
	if len(cfg.Subjects) != len(Kinds()) {
		t.Fatalf("got %d subjects, want %d", len(cfg.Subjects), len(Kinds()))
	}

	want := map[string]bool{
		"created-book":            true,
		"updated-book":            true,
		"deleted-book":            true,
		"engagement-created":      true,
		"created-rating":          true,
		"book-popularity-updated": true,
	}
	for _, s := range cfg.Subjects {
		if !want[s] {
			t.Errorf("unexpected subject %q", s)
		}
	}
	if cfg.DuplicateWindow != 2*time.Minute {
		t.Errorf("DuplicateWindow = %v", cfg.DuplicateWindow)
	}
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("publisher")
	if cfg.Name != "publisher" {
		t.Errorf("Name = %s", cfg.Name)
	}
	if cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d", cfg.FailureThreshold)
	}
	if cfg.MaxRequests != 3 {
		t.Errorf("MaxRequests = %d", cfg.MaxRequests)
	}
}
