// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/recsync/internal/middleware"
)

// Middleware in the chi func(http.Handler) http.Handler shape.
type Middleware = func(http.Handler) http.Handler

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authenticate  Middleware
	authorize     Middleware
}

// NewRouter creates a Router. authenticate and authorize may be nil, in
// which case the data routes are served without them.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, authenticate, authorize Middleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMW,
		authenticate:  authenticate,
		authorize:     authorize,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight
	r.Use(middleware.PrometheusMetrics)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		if router.authenticate != nil {
			r.Use(router.authenticate)
		}
		if router.authorize != nil {
			r.Use(router.authorize)
		}

		r.Get("/recommendations", router.handler.Recommendations)
		r.Get("/recommendations/user/{userID}", router.handler.UserRecommendations)

		r.Route("/admin/dlq", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(RateLimitAdmin))
			r.Get("/", router.handler.DLQList)
			r.Get("/stats", router.handler.DLQStats)
			r.Post("/retry", router.handler.DLQRetryAll)
			r.Post("/cleanup", router.handler.DLQCleanup)
			r.Get("/{id}", router.handler.DLQGet)
			r.Delete("/{id}", router.handler.DLQDelete)
			r.Post("/{id}/retry", router.handler.DLQRetry)
			r.Post("/{id}/redrive", router.handler.DLQRedrive)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return r
}
