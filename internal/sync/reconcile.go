// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/models"
)

// Identity reconciliation: normalized remote records are matched
// against local rows by their natural keys and written through the
// stage capability. Dimension rows (schemas, environments, link
// capabilities) are find-or-create; unique-constraint races inside the
// database layer resolve to updates.

// reconcileTimeline writes one normalized timeline. Matching prefers
// (user, timeline key); a miss falls back to (user, legacy ID) so rows
// created before the server exposed timeline keys are adopted instead
// of duplicated. selectNew sets the selection flag on newly discovered
// timelines only; an existing row keeps its flag.
func reconcileTimeline(ctx context.Context, st *database.Stage, rt *models.RemoteTimeline, selectNew bool) (*models.Timeline, error) {
	t := &models.Timeline{
		UserID:            st.UserID(),
		TimelineKey:       rt.TimelineKey,
		LegacyID:          rt.LegacyID,
		Name:              rt.Name,
		TimelineType:      rt.TimelineType,
		OwnerUsername:     rt.OwnerUsername,
		OwnerDisplayName:  rt.OwnerDisplayName,
		LastUpdate:        rt.LastUpdate,
		LastChangeID:      rt.LastChangeID,
		PublishKey:        rt.PublishKey,
		UpdateProtocol:    rt.UpdateProtocol,
		Timestamp:         rt.Timestamp,
		DeviceDisplayName: rt.DeviceDisplayName,
	}

	if rt.Environment != nil {
		env, err := st.EnsureEnvironment(ctx, rt.Environment)
		if err != nil {
			return nil, fmt.Errorf("ensure environment %s: %w", rt.Environment.EnvironmentID, err)
		}
		t.EnvironmentID = &env.ID
	}
	if rt.Schema != nil {
		schema, err := st.EnsureSchema(ctx, rt.Schema)
		if err != nil {
			return nil, fmt.Errorf("ensure schema %s: %w", rt.Schema.Name, err)
		}
		t.SchemaID = &schema.ID
	}

	existing, err := st.FindTimelineByKey(ctx, rt.TimelineKey)
	if errors.Is(err, database.ErrTimelineNotFound) && rt.LegacyID != "" {
		existing, err = st.FindTimelineByLegacyID(ctx, rt.LegacyID)
	}
	if err != nil && !errors.Is(err, database.ErrTimelineNotFound) {
		return nil, err
	}

	if existing != nil {
		t.ID = existing.ID
		t.Selected = existing.Selected
		t.LastSync = existing.LastSync
		if err := st.UpdateTimeline(ctx, t); err != nil {
			return nil, err
		}
	} else {
		t.Selected = selectNew
		if err := st.InsertTimeline(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := reconcileTimelineLinks(ctx, st, t.ID, rt.Links); err != nil {
		return nil, err
	}
	return t, nil
}

// reconcileTimelineLinks folds a timeline's link set into the shared
// (rel, pattern) capability table and associates each with the
// timeline. The association set is replaced on every discovery pass so
// relations the server stopped advertising fall away; patterns already
// carry the key placeholder, so capabilities are shared across
// timelines exposing the same relation.
func reconcileTimelineLinks(ctx context.Context, st *database.Stage, timelineID int64, links []models.LinkRef) error {
	if err := st.ClearTimelineLinks(ctx, timelineID); err != nil {
		return err
	}
	for _, link := range links {
		if link.Rel == "" || link.Pattern == "" {
			continue
		}
		capability, err := st.EnsureLinkCapability(ctx, link.Rel, link.Pattern)
		if err != nil {
			return fmt.Errorf("ensure link capability %s: %w", link.Rel, err)
		}
		if err := st.LinkTimeline(ctx, timelineID, capability.ID); err != nil {
			return err
		}
	}
	return nil
}

// reconcileTagCombination upserts one combination by (user, entity ID).
func reconcileTagCombination(ctx context.Context, st *database.Stage, rt *models.RemoteTagCombination) error {
	return st.UpsertTagCombination(ctx, &models.TagCombination{
		UserID:      st.UserID(),
		EntityID:    rt.EntityID,
		Name:        rt.Name,
		Tags:        models.JoinTags(rt.Tags),
		Description: rt.Description,
		Color:       rt.Color,
		Billable:    rt.Billable,
	})
}

// reconcileActivity upserts one activity by the exact
// (user, timeline, entity ID) triple. Duration is recomputed by the
// database layer from the stored endpoints.
func reconcileActivity(ctx context.Context, st *database.Stage, timelineID int64, ra *models.RemoteActivity) error {
	if ra.EntityID == "" {
		logging.Warn().Int64("timeline_id", timelineID).Msg("Activity without entity ID reached reconciler, skipping")
		return nil
	}
	return st.UpsertActivity(ctx, &models.Activity{
		UserID:      st.UserID(),
		TimelineID:  timelineID,
		EntityID:    ra.EntityID,
		Title:       ra.Title,
		StartTime:   ra.StartTime,
		EndTime:     ra.EndTime,
		Tags:        models.JoinTags(ra.Tags),
		Application: ra.Application,
		Notes:       ra.Notes,
	})
}
