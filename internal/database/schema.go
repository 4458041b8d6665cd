// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core tables and their id sequences.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_environments START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_schemas START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_timelines START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_links START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_tag_combinations START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_activities START 1`,

		// Credential metadata only. Secret material lives in the vault.
		`CREATE TABLE IF NOT EXISTS credential_profiles (
			user_id TEXT PRIMARY KEY,
			auth_scheme TEXT NOT NULL,
			identity TEXT NOT NULL,
			token_expiry TIMESTAMP,
			last_sync TIMESTAMP,
			auto_reauth BOOLEAN NOT NULL DEFAULT true,
			sync_new_timelines BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Environments are shared across users.
		`CREATE TABLE IF NOT EXISTS environments (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_environments'),
			environment_id TEXT NOT NULL UNIQUE,
			device_name TEXT NOT NULL DEFAULT '',
			device_display_name TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS schemas (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_schemas'),
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			base_schema_id BIGINT,
			UNIQUE (name, version)
		)`,

		`CREATE TABLE IF NOT EXISTS timelines (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_timelines'),
			user_id TEXT NOT NULL,
			timeline_key TEXT NOT NULL,
			legacy_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			environment_id BIGINT,
			device_display_name TEXT NOT NULL DEFAULT '',
			schema_id BIGINT,
			timeline_type TEXT NOT NULL DEFAULT '',
			owner_username TEXT NOT NULL DEFAULT '',
			owner_display_name TEXT NOT NULL DEFAULT '',
			last_update TIMESTAMP,
			last_change_id TEXT NOT NULL DEFAULT '',
			publish_key TEXT NOT NULL DEFAULT '',
			update_protocol TEXT NOT NULL DEFAULT '',
			ts TEXT NOT NULL DEFAULT '',
			selected BOOLEAN NOT NULL DEFAULT false,
			last_sync TIMESTAMP,
			UNIQUE (user_id, timeline_key)
		)`,

		`CREATE TABLE IF NOT EXISTS link_capabilities (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_links'),
			rel TEXT NOT NULL,
			pattern TEXT NOT NULL,
			UNIQUE (rel, pattern)
		)`,

		`CREATE TABLE IF NOT EXISTS timeline_links (
			timeline_id BIGINT NOT NULL,
			link_id BIGINT NOT NULL,
			UNIQUE (timeline_id, link_id)
		)`,

		`CREATE TABLE IF NOT EXISTS tag_combinations (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_tag_combinations'),
			user_id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			billable BOOLEAN NOT NULL DEFAULT false,
			UNIQUE (user_id, entity_id)
		)`,

		// Timestamps are timezone-naive UTC.
		`CREATE TABLE IF NOT EXISTS activities (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_activities'),
			user_id TEXT NOT NULL,
			timeline_id BIGINT NOT NULL,
			entity_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			duration DOUBLE NOT NULL DEFAULT 0,
			tags TEXT NOT NULL DEFAULT '',
			application TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			UNIQUE (user_id, timeline_id, entity_id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// createIndexes creates query indexes for the read paths.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_timelines_user ON timelines (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_timelines_legacy ON timelines (user_id, legacy_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user_start ON activities (user_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_timeline ON activities (timeline_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tag_combinations_user ON tag_combinations (user_id)`,
	}

	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", idx, err)
		}
	}
	return nil
}
