// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/manicsync/manicsync/internal/database"
)

// ListTimelines returns every known timeline for a user. With
// ?selected=true only timelines flagged for scheduled syncing are
// returned.
func (h *Handler) ListTimelines(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"user ID is required", nil)
		return
	}

	var (
		timelines any
		err       error
	)
	if r.URL.Query().Get("selected") == "true" {
		timelines, err = h.db.ListSelectedTimelines(r.Context(), userID)
	} else {
		timelines, err = h.db.ListTimelines(r.Context(), userID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to list timelines", err)
		return
	}
	respondData(w, http.StatusOK, timelines)
}

// timelineSelectionRequest toggles the scheduled-sync flag.
type timelineSelectionRequest struct {
	Selected bool `json:"selected"`
}

// SetTimelineSelection updates whether a timeline participates in
// scheduled sync passes.
func (h *Handler) SetTimelineSelection(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(chi.URLParam(r, "timelineID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"timeline ID must be a positive integer", err)
		return
	}

	var req timelineSelectionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"malformed request body", err)
		return
	}

	if err := h.db.SetTimelineSelected(r.Context(), userID, id, req.Selected); err != nil {
		if errors.Is(err, database.ErrTimelineNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND",
				"timeline not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to update timeline", err)
		return
	}

	timeline, err := h.db.GetTimeline(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to load timeline", err)
		return
	}
	respondData(w, http.StatusOK, timeline)
}

// GetTimelineLinks returns the link capabilities advertised by a
// timeline during discovery.
func (h *Handler) GetTimelineLinks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "timelineID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"timeline ID must be a positive integer", err)
		return
	}
	links, err := h.db.GetTimelineLinks(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to list timeline links", err)
		return
	}
	respondData(w, http.StatusOK, links)
}
