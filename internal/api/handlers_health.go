// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"net/http"
	"time"
)

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]any{
		"status": "alive",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HealthReady reports readiness: the database must answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY",
			"database unavailable", err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"status": "ready",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}
