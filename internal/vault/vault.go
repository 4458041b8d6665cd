// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package vault stores per-user authentication secrets encrypted at rest.
//
// Secrets never touch the relational store: credential records hold only
// non-secret metadata, and the vault holds the secret material keyed by
// (user, kind). The backing store is BadgerDB and every value is sealed
// with AES-256-GCM before it is written.
package vault

import (
	"context"
	"errors"

	"github.com/manicsync/manicsync/internal/models"
)

var (
	// ErrSecretNotFound is returned when no secret exists for the key.
	ErrSecretNotFound = errors.New("vault: secret not found")
	// ErrEmptySecret is returned when storing an empty secret value.
	ErrEmptySecret = errors.New("vault: secret value cannot be empty")
)

// Store is the credential secret store.
type Store interface {
	// Put stores or replaces a secret for the user.
	Put(ctx context.Context, userID string, kind models.SecretKind, value string) error
	// Get returns the secret, or ErrSecretNotFound.
	Get(ctx context.Context, userID string, kind models.SecretKind) (string, error)
	// Delete removes one secret kind for the user. Missing keys are not
	// an error.
	Delete(ctx context.Context, userID string, kind models.SecretKind) error
	// DeleteAll removes every secret kind for the user.
	DeleteAll(ctx context.Context, userID string) error
	// Close releases the underlying store.
	Close() error
}

// MaskSecret returns a masked form for display, keeping the last 4
// characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****..." + secret[len(secret)-4:]
}
