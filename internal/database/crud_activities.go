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

const activityColumns = `id, user_id, timeline_id, entity_id, title, start_time, end_time,
	duration, tags, application, notes`

func scanActivity(row interface{ Scan(...any) error }) (*models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.UserID, &a.TimelineID, &a.EntityID, &a.Title, &a.StartTime,
		&a.EndTime, &a.Duration, &a.Tags, &a.Application, &a.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}
	return &a, nil
}

// UpsertActivity creates or rewrites an activity keyed by
// (user, timeline, entity id). Re-syncing a window is idempotent.
func (st *Stage) UpsertActivity(ctx context.Context, a *models.Activity) error {
	a.UserID = st.userID
	a.Duration = models.ComputeDuration(a.StartTime, a.EndTime)

	var existingID int64
	err := st.tx.QueryRowContext(ctx,
		`SELECT id FROM activities WHERE user_id = ? AND timeline_id = ? AND entity_id = ?`,
		a.UserID, a.TimelineID, a.EntityID).Scan(&existingID)
	switch {
	case err == nil:
		a.ID = existingID
		res, err := st.tx.ExecContext(ctx,
			`UPDATE activities SET title = ?, start_time = ?, end_time = ?, duration = ?,
			 tags = ?, application = ?, notes = ? WHERE id = ?`,
			a.Title, a.StartTime, a.EndTime, a.Duration, a.Tags, a.Application, a.Notes, a.ID)
		if err != nil {
			return fmt.Errorf("failed to update activity: %w", err)
		}
		_, err = res.RowsAffected()
		return err
	case errors.Is(err, sql.ErrNoRows):
		err := st.tx.QueryRowContext(ctx,
			`INSERT INTO activities (user_id, timeline_id, entity_id, title, start_time, end_time,
			 duration, tags, application, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			a.UserID, a.TimelineID, a.EntityID, a.Title, a.StartTime, a.EndTime,
			a.Duration, a.Tags, a.Application, a.Notes).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("failed to look up activity: %w", err)
	}
}

// ActivityFilter narrows ListActivities.
type ActivityFilter struct {
	UserID     string
	TimelineID int64
	From       *time.Time
	To         *time.Time
	Tag        string
	Limit      int
	Offset     int
}

// ListActivities returns activities matching the filter, newest first.
func (db *DB) ListActivities(ctx context.Context, f ActivityFilter) ([]*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = ?`
	args := []any{f.UserID}

	if f.TimelineID != 0 {
		query += ` AND timeline_id = ?`
		args = append(args, f.TimelineID)
	}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, f.To.UTC())
	}
	if f.Tag != "" {
		// Tags are stored comma-joined; match whole tags only.
		query += ` AND (',' || tags || ',') LIKE ?`
		args = append(args, "%,"+f.Tag+",%")
	}

	query += ` ORDER BY start_time DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var out []*models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountActivities returns the number of activities matching the filter.
func (db *DB) CountActivities(ctx context.Context, f ActivityFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM activities WHERE user_id = ?`
	args := []any{f.UserID}
	if f.TimelineID != 0 {
		query += ` AND timeline_id = ?`
		args = append(args, f.TimelineID)
	}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, f.To.UTC())
	}

	var n int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}
