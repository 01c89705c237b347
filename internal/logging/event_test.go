// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEventLogger_DeadLettered(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	el := NewEventLoggerWithLogger(zerolog.New(&buf))
	ctx := ContextWithMessageID(context.Background(), "m-1")

	el.DeadLettered(ctx, "created-rating", "dependency", 6, errors.New("item not found"))

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["component"] != "eventprocessor" || m["message_id"] != "m-1" {
		t.Errorf("missing context fields: %v", m)
	}
	if m["topic"] != "created-rating" || m["attempts"] != float64(6) || m["error"] != "item not found" {
		t.Errorf("unexpected fields: %v", m)
	}
}

func TestEventLogger_Retrying(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	el := NewEventLoggerWithLogger(zerolog.New(&buf))
	el.Retrying(context.Background(), "updated-book", 2, time.Second, errors.New("not found"))

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["level"] != "warn" || m["attempt"] != float64(2) {
		t.Errorf("unexpected entry: %v", m)
	}
}

func TestSecurityLogger_SanitizesToken(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sl := NewSecurityLoggerWithLogger(zerolog.New(&buf))
	token := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0.signature"
	sl.TokenRejected("10.0.0.1", "/api/v1/recommendations", token, "expired")

	out := buf.String()
	if strings.Contains(out, token) {
		t.Fatalf("full token leaked into log: %s", out)
	}
	m := decodeLine(t, strings.TrimSpace(out))
	if m["token"] != "eyJh...ture" {
		t.Errorf("token = %v, want eyJh...ture", m["token"])
	}
}

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"", ""},
		{"short", "***"},
		{"abcdefghijklmnop", "abcd...mnop"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
