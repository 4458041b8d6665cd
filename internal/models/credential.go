// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package models

import "time"

// AuthScheme identifies how a user authenticates against the ManicTime server.
type AuthScheme string

const (
	// AuthBearer is OAuth-style client-credentials authentication. The
	// exchanged access token is held in the secret vault.
	AuthBearer AuthScheme = "bearer"

	// AuthNTLM is Windows challenge/response authentication handled by the
	// HTTP transport. No token exchange occurs.
	AuthNTLM AuthScheme = "ntlm"
)

// SecretKind names the secret slots the vault holds per user.
type SecretKind string

const (
	SecretClientSecret SecretKind = "client_secret"
	SecretAccessToken  SecretKind = "access_token"
	SecretRefreshToken SecretKind = "refresh_token"
)

// AllSecretKinds lists every vault slot, in deletion order for Revoke.
var AllSecretKinds = []SecretKind{SecretClientSecret, SecretAccessToken, SecretRefreshToken}

// CredentialProfile is the per-user sync configuration. At most one profile
// exists per user; its presence is what "integration enabled" means.
type CredentialProfile struct {
	UserID      string      `json:"user_id"`
	AuthScheme  AuthScheme  `json:"auth_scheme"`
	Identity    string      `json:"identity"` // client ID for bearer, username for NTLM
	TokenExpiry *time.Time  `json:"token_expiry,omitempty"`
	LastSync    *time.Time  `json:"last_sync,omitempty"`
	AutoReauth  bool        `json:"auto_reauth"`
	// SyncNewTimelines controls the selection flag applied to newly
	// discovered timelines. It does not affect which timelines a running
	// pass syncs.
	SyncNewTimelines bool      `json:"sync_new_timelines"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TokenValidAt reports whether the profile's expiry is set and not yet past.
func (p *CredentialProfile) TokenValidAt(now time.Time) bool {
	return p.TokenExpiry != nil && !p.TokenExpiry.Before(now)
}
