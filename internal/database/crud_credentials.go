// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/manicsync/manicsync/internal/models"
)

// EnsureProfile creates a credential profile for the user if none exists,
// otherwise updates its scheme and identity. Secrets are not stored here.
func (db *DB) EnsureProfile(ctx context.Context, userID string, scheme models.AuthScheme, identity string) (*models.CredentialProfile, error) {
	existing, err := db.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if existing == nil {
		query := `INSERT INTO credential_profiles
			(user_id, auth_scheme, identity, auto_reauth, sync_new_timelines, created_at, updated_at)
			VALUES (?, ?, ?, true, true, ?, ?)`
		if _, err := db.conn.ExecContext(ctx, query, userID, string(scheme), identity, now, now); err != nil {
			// Concurrent creation loses the race; fall through to update.
			if !isUniqueConstraintError(err) {
				return nil, fmt.Errorf("failed to create credential profile: %w", err)
			}
		} else {
			return db.GetProfile(ctx, userID)
		}
	}

	query := `UPDATE credential_profiles SET auth_scheme = ?, identity = ?, updated_at = ? WHERE user_id = ?`
	if _, err := db.conn.ExecContext(ctx, query, string(scheme), identity, now, userID); err != nil {
		return nil, fmt.Errorf("failed to update credential profile: %w", err)
	}
	return db.GetProfile(ctx, userID)
}

// GetProfile returns the credential profile, or ErrProfileNotFound.
func (db *DB) GetProfile(ctx context.Context, userID string) (*models.CredentialProfile, error) {
	query := `SELECT user_id, auth_scheme, identity, token_expiry, last_sync,
		auto_reauth, sync_new_timelines, created_at, updated_at
		FROM credential_profiles WHERE user_id = ?`

	var p models.CredentialProfile
	var scheme string
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &scheme, &p.Identity, &p.TokenExpiry, &p.LastSync,
		&p.AutoReauth, &p.SyncNewTimelines, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential profile: %w", err)
	}
	p.AuthScheme = models.AuthScheme(scheme)
	return &p, nil
}

// ListProfiles returns every credential profile.
func (db *DB) ListProfiles(ctx context.Context) ([]*models.CredentialProfile, error) {
	query := `SELECT user_id, auth_scheme, identity, token_expiry, last_sync,
		auto_reauth, sync_new_timelines, created_at, updated_at
		FROM credential_profiles ORDER BY user_id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credential profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.CredentialProfile
	for rows.Next() {
		var p models.CredentialProfile
		var scheme string
		if err := rows.Scan(&p.UserID, &scheme, &p.Identity, &p.TokenExpiry, &p.LastSync,
			&p.AutoReauth, &p.SyncNewTimelines, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential profile: %w", err)
		}
		p.AuthScheme = models.AuthScheme(scheme)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SetTokenExpiry records the expiry of the user's current token. A nil
// expiry marks the token revoked.
func (db *DB) SetTokenExpiry(ctx context.Context, userID string, expiry *time.Time) error {
	query := `UPDATE credential_profiles SET token_expiry = ?, updated_at = ? WHERE user_id = ?`
	res, err := db.conn.ExecContext(ctx, query, expiry, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set token expiry: %w", err)
	}
	return requireOneRow(res, ErrProfileNotFound)
}

// SetLastSync records the completion point of the user's latest sync pass.
func (db *DB) SetLastSync(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE credential_profiles SET last_sync = ?, updated_at = ? WHERE user_id = ?`
	res, err := db.conn.ExecContext(ctx, query, at.UTC(), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}
	return requireOneRow(res, ErrProfileNotFound)
}

// ResetProfileAuth clears the token expiry and last-sync marker, used
// when credentials are revoked. Sync history itself is untouched.
func (db *DB) ResetProfileAuth(ctx context.Context, userID string) error {
	query := `UPDATE credential_profiles SET token_expiry = NULL, last_sync = NULL, updated_at = ? WHERE user_id = ?`
	res, err := db.conn.ExecContext(ctx, query, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to reset profile auth state: %w", err)
	}
	return requireOneRow(res, ErrProfileNotFound)
}

// SetProfileOptions updates the per-user sync toggles.
func (db *DB) SetProfileOptions(ctx context.Context, userID string, autoReauth, syncNewTimelines bool) error {
	query := `UPDATE credential_profiles SET auto_reauth = ?, sync_new_timelines = ?, updated_at = ? WHERE user_id = ?`
	res, err := db.conn.ExecContext(ctx, query, autoReauth, syncNewTimelines, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update profile options: %w", err)
	}
	return requireOneRow(res, ErrProfileNotFound)
}

// DeleteProfile removes the credential profile. Vault secrets are cleaned
// up separately by the auth manager.
func (db *DB) DeleteProfile(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM credential_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential profile: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
