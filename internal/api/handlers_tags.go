// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ListTagCombinations returns every tag combination synced for a user.
func (h *Handler) ListTagCombinations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"user ID is required", nil)
		return
	}
	combos, err := h.db.ListTagCombinations(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to list tag combinations", err)
		return
	}
	respondData(w, http.StatusOK, combos)
}

// MatchTagCombinations returns the combinations whose tags are all
// present in the comma-separated ?tags= set. Blank entries are ignored.
func (h *Handler) MatchTagCombinations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	raw := r.URL.Query().Get("tags")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"tags parameter is required", nil)
		return
	}

	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"tags parameter contains no usable tags", nil)
		return
	}

	combos, err := h.db.MatchingTagCombinations(r.Context(), userID, tags)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to match tag combinations", err)
		return
	}
	respondData(w, http.StatusOK, combos)
}
