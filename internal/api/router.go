// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

// Package api provides the HTTP surface: Chi routing, middleware and the
// JSON handlers for recommendations, similarity lookups and model control.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pourcast/pourcast/internal/config"
)

// Router assembles the HTTP handler tree.
type Router struct {
	cfg     *config.Config
	handler *Handler
	health  *HealthHandler
}

// NewRouter creates the router over the given handlers.
func NewRouter(cfg *config.Config, handler *Handler, health *HealthHandler) *Router {
	return &Router{cfg: cfg, handler: handler, health: health}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.API.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", router.health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.API.RateLimitRequests, router.cfg.API.RateLimitWindow))
		r.Use(PrometheusMetrics)

		r.Get("/recommendations/{userID}", router.handler.GetRecommendations)
		r.Get("/alcohols/{alcoholID}/similar", router.handler.GetSimilar)

		r.Route("/models", func(r chi.Router) {
			r.Post("/fit", router.handler.TriggerFit)
			r.Post("/invalidate", router.handler.InvalidateModels)
			r.Get("/status", router.handler.GetModelStatus)
		})
	})

	return r
}
