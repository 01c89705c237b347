// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package auth authenticates read API requests.

Tokens are issued by an upstream identity service; this package only
validates them. Two modes are supported (configured via AUTH_MODE):

  - jwt: HS256 bearer tokens. The subject claim is the user id the
    recommendation endpoint serves; the roles claim feeds authorization.
  - none: development mode. The subject is taken from the X-User-ID header
    and carries the admin role.

Usage Example:

	manager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	mw, err := auth.NewMiddleware(&auth.MiddlewareConfig{
	    AuthMode:   auth.AuthModeJWT,
	    JWTManager: manager,
	})
	r.Use(mw.Authenticate)

	// in a handler
	subject := auth.GetAuthSubject(r.Context())

Rejected tokens are logged through logging.SecurityLogger with the token
truncated.
*/
package auth
