// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/linksync/internal/auth"
	"github.com/tomtom215/linksync/internal/authz"
)

// Router wires handlers to routes behind the middleware stack.
type Router struct {
	handler       *Handler
	authn         *auth.Middleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter builds a Router. jwtManager may be nil when authMode is "none".
func NewRouter(handler *Handler, jwtManager *auth.JWTManager, authMode string, enforcer *authz.Enforcer, mw *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		authn:         auth.NewMiddleware(jwtManager, authMode, denyUnauthenticated),
		authz:         authz.NewMiddleware(enforcer, denyForbidden),
		chiMiddleware: NewChiMiddleware(mw),
	}
}

// Setup returns the root HTTP handler.
func (rt *Router) Setup() http.Handler {
	h := rt.handler
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed", nil)
	})

	r.With(Instrument).Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.chiMiddleware.RateLimit())
		r.Use(Instrument)
		r.Use(rt.authn.Authenticate)
		r.Use(rt.authz.Authorize)

		r.Route("/links", func(r chi.Router) {
			r.Post("/", h.CreateLink)
			r.Get("/", h.ListLinks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetLink)
				r.Patch("/", h.UpdateLink)
				r.Post("/archive", h.ArchiveLink)
				r.Get("/snapshots", h.ListSnapshots)
				r.Post("/reassign", h.ReassignLink)

				r.Get("/assignments", h.ListLinkAssignments)
				r.Put("/assignments/{projectID}", h.AssignProject)
				r.Delete("/assignments/{projectID}", h.UnassignProject)
			})
		})

		r.Get("/projects/{projectID}/links", h.ListProjectLinks)

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", h.TriggerSync)
			r.Get("/current", h.CurrentRun)
			r.Get("/runs", h.ListRuns)
			r.Get("/runs/{runID}", h.GetRun)
		})
	})

	return r
}
