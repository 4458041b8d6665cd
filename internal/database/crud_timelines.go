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

const timelineColumns = `id, user_id, timeline_key, legacy_id, name, environment_id,
	device_display_name, schema_id, timeline_type, owner_username, owner_display_name,
	last_update, last_change_id, publish_key, update_protocol, ts, selected, last_sync`

func scanTimeline(row interface{ Scan(...any) error }) (*models.Timeline, error) {
	var t models.Timeline
	err := row.Scan(&t.ID, &t.UserID, &t.TimelineKey, &t.LegacyID, &t.Name, &t.EnvironmentID,
		&t.DeviceDisplayName, &t.SchemaID, &t.TimelineType, &t.OwnerUsername, &t.OwnerDisplayName,
		&t.LastUpdate, &t.LastChangeID, &t.PublishKey, &t.UpdateProtocol, &t.Timestamp,
		&t.Selected, &t.LastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTimelineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan timeline: %w", err)
	}
	return &t, nil
}

// GetTimeline returns a timeline by local id, or ErrTimelineNotFound.
func (db *DB) GetTimeline(ctx context.Context, id int64) (*models.Timeline, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+timelineColumns+` FROM timelines WHERE id = ?`, id)
	return scanTimeline(row)
}

// FindTimelineByKey returns the user's timeline with the given key.
func (db *DB) FindTimelineByKey(ctx context.Context, userID, timelineKey string) (*models.Timeline, error) {
	return findTimelineByKey(ctx, db.conn, userID, timelineKey)
}

// FindTimelineByKey is the in-stage variant used by the reconciler.
func (st *Stage) FindTimelineByKey(ctx context.Context, timelineKey string) (*models.Timeline, error) {
	return findTimelineByKey(ctx, st.tx, st.userID, timelineKey)
}

func findTimelineByKey(ctx context.Context, q querier, userID, timelineKey string) (*models.Timeline, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+timelineColumns+` FROM timelines WHERE user_id = ? AND timeline_key = ?`,
		userID, timelineKey)
	return scanTimeline(row)
}

// FindTimelineByLegacyID returns the user's timeline carrying the given
// pre-key identifier.
func (st *Stage) FindTimelineByLegacyID(ctx context.Context, legacyID string) (*models.Timeline, error) {
	if legacyID == "" {
		return nil, ErrTimelineNotFound
	}
	row := st.tx.QueryRowContext(ctx,
		`SELECT `+timelineColumns+` FROM timelines WHERE user_id = ? AND legacy_id = ?`,
		st.userID, legacyID)
	return scanTimeline(row)
}

// ListTimelines returns all timelines for the user.
func (db *DB) ListTimelines(ctx context.Context, userID string) ([]*models.Timeline, error) {
	return listTimelines(ctx, db.conn, userID, false)
}

// ListSelectedTimelines returns the user's timelines marked for activity
// sync.
func (db *DB) ListSelectedTimelines(ctx context.Context, userID string) ([]*models.Timeline, error) {
	return listTimelines(ctx, db.conn, userID, true)
}

func listTimelines(ctx context.Context, q querier, userID string, selectedOnly bool) ([]*models.Timeline, error) {
	query := `SELECT ` + timelineColumns + ` FROM timelines WHERE user_id = ?`
	if selectedOnly {
		query += ` AND selected`
	}
	query += ` ORDER BY name, id`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timelines: %w", err)
	}
	defer rows.Close()

	var out []*models.Timeline
	for rows.Next() {
		t, err := scanTimeline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTimeline creates a timeline record. The caller has already
// resolved environment and schema references.
func (st *Stage) InsertTimeline(ctx context.Context, t *models.Timeline) error {
	t.UserID = st.userID
	query := `INSERT INTO timelines (user_id, timeline_key, legacy_id, name, environment_id,
		device_display_name, schema_id, timeline_type, owner_username, owner_display_name,
		last_update, last_change_id, publish_key, update_protocol, ts, selected, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

	err := st.tx.QueryRowContext(ctx, query,
		t.UserID, t.TimelineKey, t.LegacyID, t.Name, t.EnvironmentID,
		t.DeviceDisplayName, t.SchemaID, t.TimelineType, t.OwnerUsername, t.OwnerDisplayName,
		t.LastUpdate, t.LastChangeID, t.PublishKey, t.UpdateProtocol, t.Timestamp,
		t.Selected, t.LastSync).Scan(&t.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost a race within the pass; update the winner instead.
			existing, ferr := st.FindTimelineByKey(ctx, t.TimelineKey)
			if ferr != nil {
				return ferr
			}
			t.ID = existing.ID
			t.Selected = existing.Selected
			return st.UpdateTimeline(ctx, t)
		}
		return fmt.Errorf("failed to insert timeline: %w", err)
	}
	return nil
}

// UpdateTimeline rewrites the remote-sourced fields of an existing
// timeline. Selected and last_sync are local state and not touched here.
func (st *Stage) UpdateTimeline(ctx context.Context, t *models.Timeline) error {
	query := `UPDATE timelines SET timeline_key = ?, legacy_id = ?, name = ?, environment_id = ?,
		device_display_name = ?, schema_id = ?, timeline_type = ?, owner_username = ?,
		owner_display_name = ?, last_update = ?, last_change_id = ?, publish_key = ?,
		update_protocol = ?, ts = ?
		WHERE id = ? AND user_id = ?`

	res, err := st.tx.ExecContext(ctx, query,
		t.TimelineKey, t.LegacyID, t.Name, t.EnvironmentID,
		t.DeviceDisplayName, t.SchemaID, t.TimelineType, t.OwnerUsername,
		t.OwnerDisplayName, t.LastUpdate, t.LastChangeID, t.PublishKey,
		t.UpdateProtocol, t.Timestamp, t.ID, st.userID)
	if err != nil {
		return fmt.Errorf("failed to update timeline: %w", err)
	}
	return requireOneRow(res, ErrTimelineNotFound)
}

// SetTimelineSelected toggles activity sync for a timeline.
func (db *DB) SetTimelineSelected(ctx context.Context, userID string, id int64, selected bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE timelines SET selected = ? WHERE id = ? AND user_id = ?`, selected, id, userID)
	if err != nil {
		return fmt.Errorf("failed to set timeline selected: %w", err)
	}
	return requireOneRow(res, ErrTimelineNotFound)
}

// SetTimelineLastSync records the per-timeline sync point.
func (st *Stage) SetTimelineLastSync(ctx context.Context, id int64, at *time.Time) error {
	res, err := st.tx.ExecContext(ctx,
		`UPDATE timelines SET last_sync = ? WHERE id = ? AND user_id = ?`, at, id, st.userID)
	if err != nil {
		return fmt.Errorf("failed to set timeline last sync: %w", err)
	}
	return requireOneRow(res, ErrTimelineNotFound)
}

// DeleteTimelines removes all of a user's timelines and their activities.
// Used when a credential profile is torn down.
func (db *DB) DeleteTimelines(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM timeline_links WHERE timeline_id IN (SELECT id FROM timelines WHERE user_id = ?)`,
		userID); err != nil {
		return fmt.Errorf("failed to delete timeline links: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM activities WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete activities: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM timelines WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete timelines: %w", err)
	}
	return nil
}
