// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/sync"
	"github.com/manicsync/manicsync/internal/validation"
)

// syncRequest selects what a manually triggered pass covers. Start is
// an optional RFC 3339 lower bound for the activity window.
type syncRequest struct {
	Start      string `json:"start,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	TimelineID int64  `json:"timeline_id,omitempty" validate:"min=0"`
	AllTags    bool   `json:"all_tags,omitempty"`
}

// TriggerSync runs a synchronization pass for the user and returns the
// outcome. Stage failures surface as a partial result rather than an
// HTTP error.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"user ID is required", nil)
		return
	}

	var req syncRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"malformed request body", err)
			return
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	opts := sync.PassOptions{
		UserID:     userID,
		TimelineID: req.TimelineID,
		AllTags:    req.AllTags,
	}
	if req.Start != "" {
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"start must be RFC 3339", err)
			return
		}
		start = start.UTC()
		opts.Start = &start
	}

	result := h.runner.Run(r.Context(), opts)
	code := syncStatusCode(result.Status)
	resp := &models.APIResponse{Status: "success", Data: result}
	if code >= http.StatusBadRequest {
		resp.Status = "error"
		resp.Error = &models.APIError{
			Code:    "SYNC_" + strings.ToUpper(string(result.Status)),
			Message: "sync pass did not complete",
		}
	}
	respondJSON(w, code, resp)
}

// syncStatusCode maps a pass outcome onto an HTTP status.
func syncStatusCode(status models.SyncStatus) int {
	switch status {
	case models.SyncAuthRequired:
		return http.StatusUnauthorized
	case models.SyncFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}
