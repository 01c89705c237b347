// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/models"
)

// DevUserHeader names the caller in AuthModeNone.
const DevUserHeader = "X-User-ID"

// RoleAdmin is the role granted to every caller in AuthModeNone.
const RoleAdmin = "admin"

// MiddlewareConfig holds configuration for Middleware.
type MiddlewareConfig struct {
	AuthMode AuthMode

	// JWTManager is required in AuthModeJWT.
	JWTManager *JWTManager

	// DefaultRole is assigned to tokens without roles.
	DefaultRole string

	// SecurityLogger defaults to logging.NewSecurityLogger().
	SecurityLogger *logging.SecurityLogger
}

// Middleware authenticates requests and stores the AuthSubject in the
// request context.
type Middleware struct {
	authenticator Authenticator
	authMode      AuthMode
	secLog        *logging.SecurityLogger
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(cfg *MiddlewareConfig) (*Middleware, error) {
	m := &Middleware{authMode: cfg.AuthMode, secLog: cfg.SecurityLogger}
	if m.secLog == nil {
		m.secLog = logging.NewSecurityLogger()
	}

	switch cfg.AuthMode {
	case AuthModeNone:
	case AuthModeJWT:
		if cfg.JWTManager == nil {
			return nil, errors.New("JWT manager required for jwt auth mode")
		}
		m.authenticator = NewJWTAuthenticator(cfg.JWTManager, cfg.DefaultRole)
	default:
		return nil, errors.New("unsupported auth mode: " + string(cfg.AuthMode))
	}
	return m, nil
}

// Mode returns the configured auth mode.
func (m *Middleware) Mode() AuthMode {
	return m.authMode
}

// Authenticate is chi middleware that rejects unauthenticated requests
// with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == AuthModeNone {
			subject := &AuthSubject{
				ID:         r.Header.Get(DevUserHeader),
				Roles:      []string{RoleAdmin},
				AuthMethod: AuthModeNone,
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
			return
		}

		subject, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			m.secLog.TokenRejected(r.RemoteAddr, r.URL.Path, ExtractBearerToken(r), err.Error())
			respondAuthError(w, r, err)
			return
		}

		ctx := ContextWithSubject(r.Context(), subject)
		ctx = logging.ContextWithUserID(ctx, subject.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respondAuthError writes the 401 envelope for err.
func respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	message := "authentication failed"
	switch {
	case errors.Is(err, ErrNoCredentials):
		message = "authentication required"
		w.Header().Set("WWW-Authenticate", `Bearer realm="recsync"`)
	case errors.Is(err, ErrExpiredCredentials):
		message = "credentials expired"
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	case errors.Is(err, ErrInvalidCredentials):
		message = "invalid credentials"
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}

	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		resp.Error.Details = map[string]interface{}{"request_id": id}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		logging.Error().Err(encErr).Msg("Failed to encode auth error")
	}
}
