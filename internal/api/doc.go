// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package api provides the HTTP read API of the recommendation service.

Routes:

	GET    /api/v1/health/live                      liveness probe
	GET    /api/v1/health/ready                     readiness (component health)
	GET    /api/v1/recommendations                  caller's recommendations
	GET    /api/v1/recommendations/user/{userID}    any user's (admin)
	GET    /api/v1/admin/dlq                        list DLQ entries
	GET    /api/v1/admin/dlq/stats                  DLQ statistics
	POST   /api/v1/admin/dlq/retry                  retry every entry with budget left
	POST   /api/v1/admin/dlq/cleanup                drop expired entries
	GET    /api/v1/admin/dlq/{id}                   one entry
	POST   /api/v1/admin/dlq/{id}/retry             replay in-process
	POST   /api/v1/admin/dlq/{id}/redrive           republish to the original topic
	DELETE /api/v1/admin/dlq/{id}                   discard
	GET    /metrics                                 Prometheus
	GET    /swagger/*                               API docs

Every JSON response uses the models.APIResponse envelope:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "query_time_ms": 3}
	}

Errors carry {code, message} in "error" with status "error".

Middleware Stack:

Global: request id, RealIP, access log, Recoverer, CORS, Prometheus
metrics. The /api/v1 data routes add httprate limiting, security headers,
bearer token authentication (auth) and Casbin authorization (authz).
*/
package api
