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

	"github.com/manicsync/manicsync/internal/models"
)

// Environments and schemas are shared dimensions referenced by timelines.
// They are written during the timeline stage of a sync pass, so the write
// paths hang off Stage while reads are available on both.

// EnsureEnvironment finds an environment by its remote identifier or
// creates it, updating device names when they changed.
func (st *Stage) EnsureEnvironment(ctx context.Context, ref *models.EnvironmentRef) (*models.Environment, error) {
	return ensureEnvironment(ctx, st.tx, ref)
}

func ensureEnvironment(ctx context.Context, q querier, ref *models.EnvironmentRef) (*models.Environment, error) {
	existing, err := getEnvironmentByRemoteID(ctx, q, ref.EnvironmentID)
	if err != nil && !errors.Is(err, ErrEnvironmentNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.DeviceName != ref.DeviceName || existing.DeviceDisplayName != ref.DeviceDisplayName {
			_, err := q.ExecContext(ctx,
				`UPDATE environments SET device_name = ?, device_display_name = ? WHERE id = ?`,
				ref.DeviceName, ref.DeviceDisplayName, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to update environment: %w", err)
			}
			existing.DeviceName = ref.DeviceName
			existing.DeviceDisplayName = ref.DeviceDisplayName
		}
		return existing, nil
	}

	var id int64
	err = q.QueryRowContext(ctx,
		`INSERT INTO environments (environment_id, device_name, device_display_name) VALUES (?, ?, ?) RETURNING id`,
		ref.EnvironmentID, ref.DeviceName, ref.DeviceDisplayName).Scan(&id)
	if err != nil {
		if isUniqueConstraintError(err) {
			return getEnvironmentByRemoteID(ctx, q, ref.EnvironmentID)
		}
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}

	return &models.Environment{
		ID:                id,
		EnvironmentID:     ref.EnvironmentID,
		DeviceName:        ref.DeviceName,
		DeviceDisplayName: ref.DeviceDisplayName,
	}, nil
}

// GetEnvironmentByRemoteID returns the environment with the given remote
// identifier, or ErrEnvironmentNotFound.
func (db *DB) GetEnvironmentByRemoteID(ctx context.Context, environmentID string) (*models.Environment, error) {
	return getEnvironmentByRemoteID(ctx, db.conn, environmentID)
}

func getEnvironmentByRemoteID(ctx context.Context, q querier, environmentID string) (*models.Environment, error) {
	var e models.Environment
	err := q.QueryRowContext(ctx,
		`SELECT id, environment_id, device_name, device_display_name FROM environments WHERE environment_id = ?`,
		environmentID).Scan(&e.ID, &e.EnvironmentID, &e.DeviceName, &e.DeviceDisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEnvironmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	return &e, nil
}

// EnsureSchema finds a schema by (name, version) or creates it, recursing
// into the base schema chain first so the child can reference it.
func (st *Stage) EnsureSchema(ctx context.Context, ref *models.SchemaRef) (*models.Schema, error) {
	return ensureSchema(ctx, st.tx, ref, 0)
}

// maxSchemaDepth bounds the base schema chain; remote data is shallow but
// a cycle in malformed input must not recurse forever.
const maxSchemaDepth = 8

func ensureSchema(ctx context.Context, q querier, ref *models.SchemaRef, depth int) (*models.Schema, error) {
	if depth > maxSchemaDepth {
		return nil, fmt.Errorf("schema base chain too deep at %s v%s", ref.Name, ref.Version)
	}

	var baseID *int64
	if ref.BaseSchema != nil {
		base, err := ensureSchema(ctx, q, ref.BaseSchema, depth+1)
		if err != nil {
			return nil, err
		}
		baseID = &base.ID
	}

	existing, err := getSchemaByNameVersion(ctx, q, ref.Name, ref.Version)
	if err != nil && !errors.Is(err, ErrSchemaNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var id int64
	err = q.QueryRowContext(ctx,
		`INSERT INTO schemas (name, version, base_schema_id) VALUES (?, ?, ?) RETURNING id`,
		ref.Name, ref.Version, baseID).Scan(&id)
	if err != nil {
		if isUniqueConstraintError(err) {
			return getSchemaByNameVersion(ctx, q, ref.Name, ref.Version)
		}
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &models.Schema{ID: id, Name: ref.Name, Version: ref.Version, BaseSchemaID: baseID}, nil
}

// GetSchemaByNameVersion returns the schema, or ErrSchemaNotFound.
func (db *DB) GetSchemaByNameVersion(ctx context.Context, name, version string) (*models.Schema, error) {
	return getSchemaByNameVersion(ctx, db.conn, name, version)
}

func getSchemaByNameVersion(ctx context.Context, q querier, name, version string) (*models.Schema, error) {
	var s models.Schema
	err := q.QueryRowContext(ctx,
		`SELECT id, name, version, base_schema_id FROM schemas WHERE name = ? AND version = ?`,
		name, version).Scan(&s.ID, &s.Name, &s.Version, &s.BaseSchemaID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSchemaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return &s, nil
}

// EnsureLinkCapability finds a (rel, pattern) capability or creates it.
func (st *Stage) EnsureLinkCapability(ctx context.Context, rel, pattern string) (*models.LinkCapability, error) {
	var l models.LinkCapability
	err := st.tx.QueryRowContext(ctx,
		`SELECT id, rel, pattern FROM link_capabilities WHERE rel = ? AND pattern = ?`,
		rel, pattern).Scan(&l.ID, &l.Rel, &l.Pattern)
	if err == nil {
		return &l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get link capability: %w", err)
	}

	err = st.tx.QueryRowContext(ctx,
		`INSERT INTO link_capabilities (rel, pattern) VALUES (?, ?) RETURNING id`,
		rel, pattern).Scan(&l.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create link capability: %w", err)
	}
	l.Rel, l.Pattern = rel, pattern
	return &l, nil
}

// ClearTimelineLinks removes every capability association for a
// timeline so discovery can write the currently advertised set.
func (st *Stage) ClearTimelineLinks(ctx context.Context, timelineID int64) error {
	_, err := st.tx.ExecContext(ctx,
		`DELETE FROM timeline_links WHERE timeline_id = ?`, timelineID)
	if err != nil {
		return fmt.Errorf("failed to clear timeline links: %w", err)
	}
	return nil
}

// LinkTimeline associates a capability with a timeline. Duplicate pairs
// are ignored.
func (st *Stage) LinkTimeline(ctx context.Context, timelineID, linkID int64) error {
	_, err := st.tx.ExecContext(ctx,
		`INSERT INTO timeline_links (timeline_id, link_id) VALUES (?, ?)`, timelineID, linkID)
	if err != nil && !isUniqueConstraintError(err) {
		return fmt.Errorf("failed to link timeline: %w", err)
	}
	return nil
}

// GetTimelineLinks returns the capabilities associated with a timeline.
func (db *DB) GetTimelineLinks(ctx context.Context, timelineID int64) ([]*models.LinkCapability, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.id, l.rel, l.pattern FROM link_capabilities l
		 JOIN timeline_links tl ON tl.link_id = l.id
		 WHERE tl.timeline_id = ? ORDER BY l.rel`, timelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline links: %w", err)
	}
	defer rows.Close()

	var out []*models.LinkCapability
	for rows.Next() {
		var l models.LinkCapability
		if err := rows.Scan(&l.ID, &l.Rel, &l.Pattern); err != nil {
			return nil, fmt.Errorf("failed to scan link capability: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
