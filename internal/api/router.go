// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the chi router: observability middleware and
// health endpoints globally, rate limiting on the versioned API group.
func NewRouter(h *Handler, mw *Middleware) chi.Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	r.Use(Instrument)
	r.Use(mw.CORS())

	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/activities", h.ListActivities)

			r.Get("/timelines", h.ListTimelines)
			r.Put("/timelines/{timelineID}/selection", h.SetTimelineSelection)
			r.Get("/timelines/{timelineID}/links", h.GetTimelineLinks)

			r.Get("/tag-combinations", h.ListTagCombinations)
			r.Get("/tag-combinations/match", h.MatchTagCombinations)

			r.Post("/sync", h.TriggerSync)

			r.Route("/profile", func(r chi.Router) {
				r.Put("/", h.EnrollProfile)
				r.Get("/", h.GetProfile)
				r.Delete("/", h.DeleteProfile)
				r.Patch("/options", h.SetProfileOptions)
				r.Post("/authenticate", h.AuthenticateProfile)
				r.Post("/revoke", h.RevokeProfile)
			})
		})
	})

	return r
}
