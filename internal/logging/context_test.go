// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package logging

import (
	"context"
	"strings"
	"testing"
)

func TestContextIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if CorrelationIDFromContext(ctx) != "" || RequestIDFromContext(ctx) != "" || MessageIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no ids")
	}

	ctx = ContextWithNewCorrelationID(ctx)
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithMessageID(ctx, "msg-1")
	ctx = ContextWithUserID(ctx, "user-1")

	if got := CorrelationIDFromContext(ctx); len(got) != 8 {
		t.Errorf("correlation id = %q, want 8 chars", got)
	}
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("request id = %q, want req-1", got)
	}
	if got := MessageIDFromContext(ctx); got != "msg-1" {
		t.Errorf("message id = %q, want msg-1", got)
	}
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("user id = %q, want user-1", got)
	}
}

func TestGenerateRequestID(t *testing.T) {
	t.Parallel()

	a, b := GenerateRequestID(), GenerateRequestID()
	if a == b || len(a) != 36 {
		t.Errorf("GenerateRequestID() = %q, %q; want two distinct UUIDs", a, b)
	}
}

func TestCtxAddsFields(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	ctx = ContextWithMessageID(ctx, "msg-7")
	Ctx(ctx).Info().Msg("hello")

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["request_id"] != "req-42" || m["message_id"] != "msg-7" {
		t.Errorf("unexpected entry: %v", m)
	}
	if _, ok := m["correlation_id"]; ok {
		t.Error("correlation_id present but not set")
	}
}

func TestWithComponent(t *testing.T) {
	buf := captureGlobal(t)

	l := WithComponent("catalog")
	l.Info().Msg("x")

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["component"] != "catalog" {
		t.Errorf("component = %v, want catalog", m["component"])
	}
}
