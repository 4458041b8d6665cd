// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/validation"
)

// activitiesRequest carries the validated query parameters for the
// activity listing endpoint.
type activitiesRequest struct {
	UserID string `validate:"required"`
	Limit  int    `validate:"min=0"`
	Offset int    `validate:"min=0"`
	Tag    string
}

// ListActivities returns stored activities for a user, newest first.
// Optional from/to (RFC 3339), timeline_id, tag, limit, and offset
// parameters narrow the window.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	req := activitiesRequest{
		UserID: chi.URLParam(r, "userID"),
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
		Tag:    r.URL.Query().Get("tag"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	from, err := queryTime(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"from must be RFC 3339", err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"to must be RFC 3339", err)
		return
	}

	filter := database.ActivityFilter{
		UserID:     req.UserID,
		TimelineID: int64(queryInt(r, "timeline_id", 0)),
		From:       from,
		To:         to,
		Tag:        req.Tag,
		Limit:      h.clampLimit(req.Limit),
		Offset:     req.Offset,
	}

	start := time.Now()
	activities, err := h.db.ListActivities(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to list activities", err)
		return
	}
	total, err := h.db.CountActivities(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to count activities", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.Page{
			Items:  activities,
			Total:  total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
