// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package middleware provides HTTP infrastructure middleware for the read API.

Key Components:

  - RequestID: X-Request-ID propagation into the response header, the request
    context and the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by the chi route pattern so path parameters do not explode cardinality
  - AccessLog: one structured zerolog line per request

Middleware Stack:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

Authentication and authorization live in the auth and authz packages.
*/
package middleware
