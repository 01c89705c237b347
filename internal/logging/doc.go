// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package logging provides the service-wide zerolog logger.

A single global logger is configured once from config.Logging:

	logging.Init(logging.Config{Level: "info", Format: "json", Timestamp: true})
	logging.Info().Str("addr", addr).Msg("HTTP server listening")

Context helpers attach request, correlation and broker message ids:

	ctx = logging.ContextWithRequestID(ctx, id)
	logging.Ctx(ctx).Warn().Err(err).Msg("Catalog unavailable")

NewSlogLogger bridges slog-only libraries (suture via sutureslog, watermill
via watermill.NewSlogLogger) onto the same output. EventLogger and
SecurityLogger give the intake layer and the auth middleware a fixed field
vocabulary.

Always terminate an entry with Msg or Send; an unterminated chain is
silently dropped.
*/
package logging
