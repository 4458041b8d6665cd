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

const tagComboColumns = `id, user_id, entity_id, name, tags, description, color, billable`

func scanTagCombination(row interface{ Scan(...any) error }) (*models.TagCombination, error) {
	var c models.TagCombination
	err := row.Scan(&c.ID, &c.UserID, &c.EntityID, &c.Name, &c.Tags, &c.Description, &c.Color, &c.Billable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTagCombinationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tag combination: %w", err)
	}
	return &c, nil
}

// FindTagCombinationByEntityID returns the user's combination with the
// given remote entity id.
func (st *Stage) FindTagCombinationByEntityID(ctx context.Context, entityID string) (*models.TagCombination, error) {
	row := st.tx.QueryRowContext(ctx,
		`SELECT `+tagComboColumns+` FROM tag_combinations WHERE user_id = ? AND entity_id = ?`,
		st.userID, entityID)
	return scanTagCombination(row)
}

// UpsertTagCombination creates or rewrites a tag combination keyed by
// (user, entity id).
func (st *Stage) UpsertTagCombination(ctx context.Context, c *models.TagCombination) error {
	c.UserID = st.userID

	existing, err := st.FindTagCombinationByEntityID(ctx, c.EntityID)
	if err != nil && !errors.Is(err, ErrTagCombinationNotFound) {
		return err
	}
	if existing != nil {
		c.ID = existing.ID
		res, err := st.tx.ExecContext(ctx,
			`UPDATE tag_combinations SET name = ?, tags = ?, description = ?, color = ?, billable = ?
			 WHERE id = ? AND user_id = ?`,
			c.Name, c.Tags, c.Description, c.Color, c.Billable, c.ID, st.userID)
		if err != nil {
			return fmt.Errorf("failed to update tag combination: %w", err)
		}
		return requireOneRow(res, ErrTagCombinationNotFound)
	}

	err = st.tx.QueryRowContext(ctx,
		`INSERT INTO tag_combinations (user_id, entity_id, name, tags, description, color, billable)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		c.UserID, c.EntityID, c.Name, c.Tags, c.Description, c.Color, c.Billable).Scan(&c.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			winner, ferr := st.FindTagCombinationByEntityID(ctx, c.EntityID)
			if ferr != nil {
				return ferr
			}
			c.ID = winner.ID
			return st.UpsertTagCombination(ctx, c)
		}
		return fmt.Errorf("failed to insert tag combination: %w", err)
	}
	return nil
}

// ListTagCombinations returns all of the user's tag combinations.
func (db *DB) ListTagCombinations(ctx context.Context, userID string) ([]*models.TagCombination, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+tagComboColumns+` FROM tag_combinations WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag combinations: %w", err)
	}
	defer rows.Close()

	var out []*models.TagCombination
	for rows.Next() {
		c, err := scanTagCombination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MatchingTagCombinations returns the user's combinations whose tag set is
// fully contained in the given activity tags.
func (db *DB) MatchingTagCombinations(ctx context.Context, userID string, activityTags []string) ([]*models.TagCombination, error) {
	all, err := db.ListTagCombinations(ctx, userID)
	if err != nil {
		return nil, err
	}
	var matched []*models.TagCombination
	for _, c := range all {
		if c.MatchesTags(activityTags) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}
