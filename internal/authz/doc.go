// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package authz authorizes read API requests with Casbin RBAC.
//
// The model matches request paths with keyMatch2 and resolves role
// inheritance through g. The embedded policy defines two roles:
//
//	user   GET /api/v1/recommendations
//	admin  everything user can, plus /api/v1/recommendations/user/{userID}
//	       and /api/v1/admin/*
//
// File paths for the model and policy override the embedded copies; a file
// policy is reloaded periodically. Decisions are cached per subject, path
// and action for CacheTTL.
package authz
