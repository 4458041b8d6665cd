// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package auth manages credential profiles and their lifecycle against
// the ManicTime server: token exchange for bearer credentials,
// credential verification for NTLM, validity checks with automatic
// re-authentication, and revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manicsync/manicsync/internal/config"
	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/metrics"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/sync"
	"github.com/manicsync/manicsync/internal/vault"
)

// Manager owns credential profiles and their vault-held secrets.
type Manager struct {
	db    *database.DB
	vault vault.Store
	cfg   *config.Config
}

func NewManager(db *database.DB, store vault.Store, cfg *config.Config) *Manager {
	return &Manager{db: db, vault: store, cfg: cfg}
}

// EnsureProfile creates or updates the user's profile and stores the
// supplied secret. A user has at most one profile; enabling an already
// enabled user updates it in place. A newly created profile takes its
// auto-reauth and new-timeline selection flags from the configuration;
// an existing profile keeps whatever the user set.
func (m *Manager) EnsureProfile(ctx context.Context, userID string, scheme models.AuthScheme, identity, secret string) (*models.CredentialProfile, error) {
	_, err := m.db.GetProfile(ctx, userID)
	created := errors.Is(err, database.ErrProfileNotFound)
	if err != nil && !created {
		return nil, err
	}

	profile, err := m.db.EnsureProfile(ctx, userID, scheme, identity)
	if err != nil {
		return nil, err
	}
	if created {
		if err := m.db.SetProfileOptions(ctx, userID, m.cfg.Auth.AutoReauth, m.cfg.Sync.SyncNewTimelines); err != nil {
			return nil, err
		}
		profile, err = m.db.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	if secret != "" {
		if err := m.vault.Put(ctx, userID, models.SecretClientSecret, secret); err != nil {
			return nil, fmt.Errorf("failed to store credential secret: %w", err)
		}
	}
	return profile, nil
}

// DeleteProfile removes the profile and every vault secret for the
// user. Historical sync data is kept.
func (m *Manager) DeleteProfile(ctx context.Context, userID string) error {
	if err := m.vault.DeleteAll(ctx, userID); err != nil {
		return err
	}
	return m.db.DeleteProfile(ctx, userID)
}

// Authenticate performs the credential exchange for the user's scheme.
//
// Bearer credentials are exchanged for an access token, which is stored
// in the vault; expiry is capped at the configured bearer TTL
// regardless of any server-declared lifetime. NTLM has no exchange: a
// successful credential check sets the longer NTLM TTL. After a
// successful exchange a verification fetch runs best-effort; its
// failure is logged but does not invalidate the token.
func (m *Manager) Authenticate(ctx context.Context, userID string) error {
	profile, secret, err := m.profileAndSecret(ctx, userID)
	if err != nil {
		return err
	}

	var verifyClient sync.Client
	switch profile.AuthScheme {
	case models.AuthNTLM:
		verifyClient, err = m.authenticateNTLM(ctx, profile, secret)
	default:
		verifyClient, err = m.authenticateBearer(ctx, profile, secret)
	}
	metrics.RecordAuthAttempt(string(profile.AuthScheme), err == nil)
	if err != nil {
		return err
	}

	m.verify(ctx, userID, verifyClient)
	return nil
}

func (m *Manager) profileAndSecret(ctx context.Context, userID string) (*models.CredentialProfile, string, error) {
	if m.cfg.ManicTime.URL == "" {
		return nil, "", fmt.Errorf("%w: server URL unset", sync.ErrNotConfigured)
	}
	profile, err := m.db.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			return nil, "", fmt.Errorf("%w: no credential profile for user %s", sync.ErrNotConfigured, userID)
		}
		return nil, "", err
	}
	secret, err := m.vault.Get(ctx, userID, models.SecretClientSecret)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, "", fmt.Errorf("%w: no stored secret", sync.ErrAuthRequired)
		}
		return nil, "", err
	}
	return profile, secret, nil
}

// authenticateBearer exchanges (client ID, client secret) for a bearer
// token and stores it.
func (m *Manager) authenticateBearer(ctx context.Context, profile *models.CredentialProfile, secret string) (sync.Client, error) {
	client := sync.NewClient(m.cfg.ManicTime, m.cfg.Sync, sync.Credentials{
		Scheme:   models.AuthBearer,
		Identity: profile.Identity,
		Secret:   secret,
	})

	token, err := client.ExchangeToken(ctx)
	if err != nil {
		return nil, err
	}
	bearer := token.BearerToken()
	if err := m.vault.Put(ctx, profile.UserID, models.SecretAccessToken, bearer); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	expiry := time.Now().UTC().Add(m.cfg.Auth.BearerTokenTTL)
	if err := m.db.SetTokenExpiry(ctx, profile.UserID, &expiry); err != nil {
		return nil, err
	}
	logging.Info().Str("user_id", profile.UserID).Time("expiry", expiry).Msg("Bearer token acquired")

	return sync.NewClient(m.cfg.ManicTime, m.cfg.Sync, sync.Credentials{
		Scheme:   models.AuthBearer,
		Identity: profile.Identity,
		Token:    bearer,
	}), nil
}

// authenticateNTLM has no token exchange; the credential check is a
// fetch against the timeline endpoint through the negotiating
// transport.
func (m *Manager) authenticateNTLM(ctx context.Context, profile *models.CredentialProfile, secret string) (sync.Client, error) {
	client := sync.NewClient(m.cfg.ManicTime, m.cfg.Sync, sync.Credentials{
		Scheme:   models.AuthNTLM,
		Identity: profile.Identity,
		Secret:   secret,
	})

	if _, err := client.GetTimelines(ctx); err != nil {
		return nil, err
	}

	expiry := time.Now().UTC().Add(m.cfg.Auth.NTLMTokenTTL)
	if err := m.db.SetTokenExpiry(ctx, profile.UserID, &expiry); err != nil {
		return nil, err
	}
	logging.Info().Str("user_id", profile.UserID).Time("expiry", expiry).Msg("NTLM credentials verified")
	return client, nil
}

// verify runs the post-exchange check fetches. Failure here does not
// invalidate an otherwise successful exchange.
func (m *Manager) verify(ctx context.Context, userID string, client sync.Client) {
	if _, err := client.GetTimelines(ctx); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Post-auth timeline verification failed, proceeding anyway")
		return
	}
	if _, err := client.GetTagCombinations(ctx, false); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Post-auth tag verification failed, proceeding anyway")
	}
}

// IsValid reports whether the user can sync right now: a profile
// exists, the scheme's secret is retrievable, and the expiry has not
// passed.
func (m *Manager) IsValid(ctx context.Context, userID string) bool {
	profile, err := m.db.GetProfile(ctx, userID)
	if err != nil {
		return false
	}
	if !profile.TokenValidAt(time.Now().UTC()) {
		return false
	}

	kind := models.SecretAccessToken
	if profile.AuthScheme == models.AuthNTLM {
		kind = models.SecretClientSecret
	}
	if _, err := m.vault.Get(ctx, userID, kind); err != nil {
		return false
	}
	return true
}

// EnsureValid implements sync.AuthGuard: valid credentials pass, and an
// invalid profile gets exactly one automatic re-authentication attempt
// when it opted in.
func (m *Manager) EnsureValid(ctx context.Context, userID string) error {
	if m.IsValid(ctx, userID) {
		return nil
	}

	profile, err := m.db.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			return fmt.Errorf("%w: no credential profile for user %s", sync.ErrNotConfigured, userID)
		}
		return err
	}
	if !profile.AutoReauth {
		return sync.ErrAuthRequired
	}

	if err := m.Authenticate(ctx, userID); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Automatic re-authentication failed")
		metrics.RecordAuthRefresh(false)
		if errors.Is(err, sync.ErrNotConfigured) {
			return err
		}
		return fmt.Errorf("%w: %v", sync.ErrAuthRequired, err)
	}
	metrics.RecordAuthRefresh(true)

	if !m.IsValid(ctx, userID) {
		return sync.ErrAuthRequired
	}
	return nil
}

// Revoke clears the token expiry and last-sync marker and deletes every
// secret kind from the vault.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.db.ResetProfileAuth(ctx, userID); err != nil {
		return err
	}
	for _, kind := range models.AllSecretKinds {
		if err := m.vault.Delete(ctx, userID, kind); err != nil {
			return err
		}
	}
	logging.Info().Str("user_id", userID).Msg("Credentials revoked")
	return nil
}

// ClientFactory returns a per-pass client builder for the orchestrator.
// Each call builds a caching client so GET memoization stays within one
// pass.
func (m *Manager) ClientFactory() sync.ClientFactory {
	return func(ctx context.Context, userID string) (sync.Client, error) {
		profile, err := m.db.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}

		creds := sync.Credentials{Scheme: profile.AuthScheme, Identity: profile.Identity}
		switch profile.AuthScheme {
		case models.AuthNTLM:
			secret, err := m.vault.Get(ctx, userID, models.SecretClientSecret)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", sync.ErrAuthRequired, err)
			}
			creds.Secret = secret
		default:
			token, err := m.vault.Get(ctx, userID, models.SecretAccessToken)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", sync.ErrAuthRequired, err)
			}
			creds.Token = token
		}
		return sync.NewCachedClient(m.cfg.ManicTime, m.cfg.Sync, creds), nil
	}
}

// RefreshExpiring re-authenticates profiles whose expiry is unset,
// past, or within the given horizon, skipping profiles that opted out
// of automatic re-authentication. Per-user failures are isolated.
func (m *Manager) RefreshExpiring(ctx context.Context, within time.Duration) {
	profiles, err := m.db.ListProfiles(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Auth sweep could not list profiles")
		return
	}

	horizon := time.Now().UTC().Add(within)
	for _, p := range profiles {
		if !p.AutoReauth {
			continue
		}
		if p.TokenExpiry != nil && p.TokenExpiry.After(horizon) {
			continue
		}
		if err := m.Authenticate(ctx, p.UserID); err != nil {
			metrics.RecordAuthRefresh(false)
			logging.Warn().Err(err).Str("user_id", p.UserID).Msg("Scheduled re-authentication failed")
			continue
		}
		metrics.RecordAuthRefresh(true)
		logging.Info().Str("user_id", p.UserID).Msg("Scheduled re-authentication succeeded")
	}
}
