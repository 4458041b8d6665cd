// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/sync"
	"github.com/manicsync/manicsync/internal/validation"
)

// enrollRequest creates or updates a credential profile. The secret is
// write-only: it lands in the vault and is never echoed back.
type enrollRequest struct {
	Scheme   string `json:"scheme" validate:"required,oneof=bearer ntlm"`
	Identity string `json:"identity" validate:"required"`
	Secret   string `json:"secret,omitempty"`
}

// profileStatus is the outward view of a profile plus liveness of its
// authentication.
type profileStatus struct {
	*models.CredentialProfile
	Authenticated bool `json:"authenticated"`
}

// EnrollProfile creates or replaces the credential profile for a user.
func (h *Handler) EnrollProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"user ID is required", nil)
		return
	}

	var req enrollRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"malformed request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	profile, err := h.profiles.EnsureProfile(r.Context(), userID,
		models.AuthScheme(req.Scheme), req.Identity, req.Secret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR",
			"failed to store profile", err)
		return
	}
	respondData(w, http.StatusOK, profile)
}

// GetProfile returns a profile with its authentication state. Secrets
// never appear in the response.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	profile, err := h.db.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND",
				"profile not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to load profile", err)
		return
	}
	respondData(w, http.StatusOK, profileStatus{
		CredentialProfile: profile,
		Authenticated:     h.profiles.IsValid(r.Context(), userID),
	})
}

// profileOptionsRequest toggles per-profile sync behavior.
type profileOptionsRequest struct {
	AutoReauth       bool `json:"auto_reauth"`
	SyncNewTimelines bool `json:"sync_new_timelines"`
}

// SetProfileOptions updates the automatic re-authentication and
// new-timeline selection flags.
func (h *Handler) SetProfileOptions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req profileOptionsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"malformed request body", err)
		return
	}

	if err := h.db.SetProfileOptions(r.Context(), userID, req.AutoReauth, req.SyncNewTimelines); err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND",
				"profile not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to update profile", err)
		return
	}

	profile, err := h.db.GetProfile(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"failed to load profile", err)
		return
	}
	respondData(w, http.StatusOK, profile)
}

// AuthenticateProfile performs a credential exchange against the remote
// server and records the resulting token lifetime.
func (h *Handler) AuthenticateProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.profiles.Authenticate(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, sync.ErrNotConfigured):
			respondError(w, http.StatusNotFound, "NOT_CONFIGURED",
				"no credential profile enrolled", err)
		case errors.Is(err, sync.ErrAuthRequired):
			respondError(w, http.StatusUnauthorized, "AUTH_FAILED",
				"credentials were rejected", err)
		default:
			respondError(w, http.StatusBadGateway, "REMOTE_ERROR",
				"authentication against remote server failed", err)
		}
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"user_id":       userID,
		"authenticated": true,
	})
}

// RevokeProfile clears stored secrets and token state but keeps the
// profile and synced data.
func (h *Handler) RevokeProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.profiles.Revoke(r.Context(), userID); err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND",
				"profile not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR",
			"failed to revoke credentials", err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"revoked": true,
	})
}

// DeleteProfile removes the profile and every secret held for the user.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.profiles.DeleteProfile(r.Context(), userID); err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND",
				"profile not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR",
			"failed to delete profile", err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"deleted": true,
	})
}
