// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/recsync/internal/config"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func newTestManager(t *testing.T, issuer string) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, JWTIssuer: issuer})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"valid secret", testSecret, false},
		{"empty secret", "", true},
		{"short secret", "too-short", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWTManager(&config.SecurityConfig{JWTSecret: tt.secret})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewJWTManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, "")

	token, err := m.GenerateToken("user-1", []string{"user", "admin"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[1] != "admin" {
		t.Errorf("Roles = %v", claims.Roles)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, "")

	expired, err := m.GenerateToken("user-1", nil, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	other, _ := NewJWTManager(&config.SecurityConfig{JWTSecret: strings.Repeat("x", 40)})
	wrongKey, _ := other.GenerateToken("user-1", nil, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong key", wrongKey},
		{"alg none", noneToken},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() succeeded, want error")
			}
		})
	}
}

func TestValidateToken_Issuer(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, "https://id.example.com")
	foreign := newTestManager(t, "https://other.example.com")

	own, _ := m.GenerateToken("user-1", nil, time.Hour)
	if _, err := m.ValidateToken(own); err != nil {
		t.Errorf("own issuer rejected: %v", err)
	}
	theirs, _ := foreign.GenerateToken("user-1", nil, time.Hour)
	if _, err := m.ValidateToken(theirs); err == nil {
		t.Error("foreign issuer accepted")
	}
}

func TestAuthSubjectFromClaims(t *testing.T) {
	t.Parallel()

	claims := &Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	s := AuthSubjectFromClaims(claims, "user")
	if s.ID != "u1" || !s.HasRole("admin") || s.HasRole("user") {
		t.Errorf("subject = %+v", s)
	}

	s = AuthSubjectFromClaims(&Claims{Username: "bob"}, "user")
	if s.ID != "bob" || !s.HasRole("user") {
		t.Errorf("defaults: subject = %+v", s)
	}

	if AuthSubjectFromClaims(nil, "user") != nil {
		t.Error("nil claims produced a subject")
	}
}

func TestParseAuthMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]AuthMode{"": AuthModeJWT, "jwt": AuthModeJWT, "none": AuthModeNone} {
		got, err := ParseAuthMode(in)
		if err != nil || got != want {
			t.Errorf("ParseAuthMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAuthMode("oidc"); err == nil {
		t.Error("ParseAuthMode(oidc) succeeded")
	}
}
