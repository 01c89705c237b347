// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package logging

import (
	"github.com/rs/zerolog"
)

// SecurityLogger records authentication and authorization decisions on the
// read API. Tokens are never logged in full.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("auth")}
}

// NewSecurityLoggerWithLogger creates a security logger over l.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(l zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: l.With().Str("component", "auth").Logger()}
}

// TokenRejected logs a bearer token that failed validation.
func (s *SecurityLogger) TokenRejected(ip, path, token, reason string) {
	s.logger.Warn().
		Str("event", "token_rejected").
		Str("ip", ip).
		Str("path", path).
		Str("token", SanitizeToken(token)).
		Str("reason", reason).
		Msg("Authentication failed")
}

// AccessDenied logs an authenticated subject refused by policy.
func (s *SecurityLogger) AccessDenied(subject, role, path, method string) {
	s.logger.Warn().
		Str("event", "access_denied").
		Str("subject", subject).
		Str("role", role).
		Str("path", path).
		Str("method", method).
		Msg("Authorization denied")
}

// SanitizeToken keeps the first and last four characters of a token.
//
//	"eyJhbGciOiJIUzI1NiJ9.e30.sig" -> "eyJh...sig"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
