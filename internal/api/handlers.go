// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"context"
	"time"

	"github.com/manicsync/manicsync/internal/config"
	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/sync"
)

// PassRunner triggers a synchronization pass. Satisfied by
// *sync.Orchestrator.
type PassRunner interface {
	Run(ctx context.Context, opts sync.PassOptions) *models.SyncResult
}

// ProfileService manages credential profiles and their authentication
// state. Satisfied by *auth.Manager.
type ProfileService interface {
	EnsureProfile(ctx context.Context, userID string, scheme models.AuthScheme, identity, secret string) (*models.CredentialProfile, error)
	DeleteProfile(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, userID string) error
	IsValid(ctx context.Context, userID string) bool
	Revoke(ctx context.Context, userID string) error
}

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	db        *database.DB
	runner    PassRunner
	profiles  ProfileService
	cfg       *config.Config
	startTime time.Time
}

// NewHandler creates the handler set backing the router.
func NewHandler(db *database.DB, runner PassRunner, profiles ProfileService, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		runner:    runner,
		profiles:  profiles,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// clampLimit bounds a requested page size to the configured window.
func (h *Handler) clampLimit(limit int) int {
	def, max := h.cfg.API.DefaultPageSize, h.cfg.API.MaxPageSize
	if def <= 0 {
		def = 100
	}
	if max <= 0 {
		max = 1000
	}
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
