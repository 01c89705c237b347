// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package authz

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/recsync/internal/auth"
	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/logging"
)

func newTestEnforcer(t *testing.T, cfg *EnforcerConfig) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(cfg)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEnforcer_EmbeddedPolicy(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t, nil)

	tests := []struct {
		role, path, action string
		want               bool
	}{
		{"user", "/api/v1/recommendations", "read", true},
		{"user", "/api/v1/recommendations/user/abc", "read", false},
		{"user", "/api/v1/admin/dlq", "read", false},
		{"admin", "/api/v1/recommendations", "read", true},
		{"admin", "/api/v1/recommendations/user/abc", "read", true},
		{"admin", "/api/v1/admin/dlq/xyz/retry", "write", true},
		{"admin", "/api/v1/admin/dlq/xyz", "delete", true},
		{"guest", "/api/v1/recommendations", "read", false},
	}
	for _, tt := range tests {
		got, err := e.Enforce(tt.role, tt.path, tt.action)
		if err != nil {
			t.Fatalf("Enforce(%s, %s, %s) error = %v", tt.role, tt.path, tt.action, err)
		}
		if got != tt.want {
			t.Errorf("Enforce(%s, %s, %s) = %v, want %v", tt.role, tt.path, tt.action, got, tt.want)
		}
	}
}

func TestEnforcer_DefaultRole(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t, nil)

	allowed, err := e.EnforceWithRoles("some-user-id", nil, "/api/v1/recommendations", "read")
	if err != nil || !allowed {
		t.Errorf("default role read = %v, %v; want true", allowed, err)
	}
	allowed, _ = e.EnforceWithRoles("some-user-id", []string{"guest"}, "/api/v1/recommendations", "read")
	if allowed {
		t.Error("explicit unknown role fell back to the default role")
	}
}

func TestEnforcer_CachedDecisionsAreStable(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t, nil)

	for i := 0; i < 3; i++ {
		got, _ := e.Enforce("user", "/api/v1/admin/dlq", "read")
		if got {
			t.Fatalf("iteration %d allowed user on admin path", i)
		}
	}
	if e.cache.Len() != 1 {
		t.Errorf("cache size = %d, want 1", e.cache.Len())
	}
}

func TestEnforcer_PolicyFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(path, []byte("p, auditor, /api/v1/admin/*, read\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := EnforcerConfigFrom(&config.CasbinConfig{PolicyPath: path})
	cfg.ReloadInterval = 0
	e := newTestEnforcer(t, cfg)

	if ok, _ := e.Enforce("auditor", "/api/v1/admin/dlq", "read"); !ok {
		t.Error("file policy not loaded")
	}
	if ok, _ := e.Enforce("admin", "/api/v1/admin/dlq", "read"); ok {
		t.Error("embedded policy leaked into file policy")
	}
	if len(e.GetPolicy()) != 1 {
		t.Errorf("policies = %v", e.GetPolicy())
	}
}

func TestMiddleware_AuthorizeRequest(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t, nil)
	mw := NewMiddleware(e, logging.NewSecurityLoggerWithLogger(logging.NewTestLogger(&strings.Builder{})))
	h := mw.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		subject    *auth.AuthSubject
		method     string
		path       string
		wantStatus int
	}{
		{"no subject", nil, http.MethodGet, "/api/v1/recommendations", http.StatusForbidden},
		{"user reads own", &auth.AuthSubject{ID: "u", Roles: []string{"user"}}, http.MethodGet, "/api/v1/recommendations", http.StatusNoContent},
		{"user on admin", &auth.AuthSubject{ID: "u", Roles: []string{"user"}}, http.MethodGet, "/api/v1/admin/dlq", http.StatusForbidden},
		{"admin retry", &auth.AuthSubject{ID: "a", Roles: []string{"admin"}}, http.MethodPost, "/api/v1/admin/dlq/1/retry", http.StatusNoContent},
		{"admin delete", &auth.AuthSubject{ID: "a", Roles: []string{"admin"}}, http.MethodDelete, "/api/v1/admin/dlq/1", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.subject != nil {
				req = req.WithContext(auth.ContextWithSubject(req.Context(), tt.subject))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}
