// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/recsync/internal/logging"
)

func newTestMiddleware(t *testing.T, mode AuthMode) (*Middleware, *JWTManager) {
	t.Helper()
	m := newTestManager(t, "")
	mw, err := NewMiddleware(&MiddlewareConfig{
		AuthMode:       mode,
		JWTManager:     m,
		DefaultRole:    "user",
		SecurityLogger: logging.NewSecurityLoggerWithLogger(logging.NewTestLogger(&strings.Builder{})),
	})
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}
	return mw, m
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetAuthSubject(r.Context())
		if s == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(s.ID + "|" + strings.Join(s.Roles, ",")))
	})
}

func TestNewMiddleware_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewMiddleware(&MiddlewareConfig{AuthMode: AuthModeJWT}); err == nil {
		t.Error("jwt mode without manager succeeded")
	}
	if _, err := NewMiddleware(&MiddlewareConfig{AuthMode: "basic"}); err == nil {
		t.Error("unsupported mode succeeded")
	}
}

func TestMiddleware_JWT(t *testing.T) {
	t.Parallel()
	mw, m := newTestMiddleware(t, AuthModeJWT)
	h := mw.Authenticate(subjectEcho())

	valid, _ := m.GenerateToken("user-1", nil, time.Hour)
	expired, _ := m.GenerateToken("user-1", nil, -time.Hour)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, "user-1|user"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "user-1|user"},
		{"missing", "", http.StatusUnauthorized, "authentication required"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "credentials expired"},
		{"invalid", "Bearer abc.def.ghi", http.StatusUnauthorized, "invalid credentials"},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "authentication required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestMiddleware_None(t *testing.T) {
	t.Parallel()
	mw, _ := newTestMiddleware(t, AuthModeNone)
	h := mw.Authenticate(subjectEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, "dev-user")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "dev-user|admin" {
		t.Errorf("status/body = %d/%s", rec.Code, rec.Body.String())
	}
}
