// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package main provides the Recsync HTTP server
//
// Recsync keeps per-user taste profiles and per-item genre features in sync
// with catalog and engagement events, and serves ranked recommendations.
//
// @title Recsync API
// @version 1.0
// @description Event-driven recommendation service
// @description
// @description ## Recommendations
// @description
// @description Users with a taste profile get content-based results blended with
// @description popularity; everyone else gets the popularity ranking. Short
// @description personalized pages are topped up from the popularity list.
// @description
// @description ## Authentication
// @description
// @description Data endpoints require a JWT Bearer token issued by the platform's
// @description identity service. The token subject is the user UUID.
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per minute per IP address.
// @description Health probes allow 1000/min and DLQ admin endpoints 30/min.
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "data": null,
// @description   "error": {
// @description     "code": "ERROR_CODE",
// @description     "message": "Human-readable error message",
// @description     "details": {}
// @description   },
// @description   "metadata": {
// @description     "timestamp": "2026-03-01T12:34:56Z"
// @description   }
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/recsync/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token: "Bearer <token>".
//
// @tag.name Recommendations
// @tag.description Ranked recommendations for the caller or, for admins, any user
//
// @tag.name DLQ
// @tag.description Dead letter queue inspection and recovery (admin only)
//
// @tag.name Health
// @tag.description Liveness and readiness probes
package main
