// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

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
)

// passState names the orchestrator's position in a pass, for logging.
type passState string

const (
	stateIdle              passState = "idle"
	stateCheckingAuth      passState = "checking_auth"
	stateAuthFailed        passState = "auth_failed"
	stateSyncingTags       passState = "syncing_tags"
	stateSyncingTimelines  passState = "syncing_timelines"
	stateSyncingActivities passState = "syncing_activities"
	stateFinalizing        passState = "finalizing"
	stateDone              passState = "done"
	stateFailed            passState = "failed"
)

// AuthGuard validates a user's credentials before a pass starts,
// attempting one automatic refresh when the profile allows it. It
// returns ErrNotConfigured when no profile or server URL exists and
// ErrAuthRequired when credentials are absent, expired, or rejected.
type AuthGuard interface {
	EnsureValid(ctx context.Context, userID string) error
}

// ClientFactory builds a per-pass client carrying one user's stored
// credentials. Each pass gets a fresh client so response memoization
// never crosses pass boundaries.
type ClientFactory func(ctx context.Context, userID string) (Client, error)

// PassOptions selects what one sync pass covers.
type PassOptions struct {
	UserID string
	// Start, when set, is an explicit incremental window start.
	Start *time.Time
	// TimelineID restricts the pass to one timeline's activities,
	// skipping discovery. Zero means all known timelines.
	TimelineID int64
	// AllTags requests every user's tags on the legacy tag endpoint,
	// which the server only honors for manager credentials.
	AllTags bool
	// Scheduled marks a non-interactive invocation: the window is
	// derived from the profile's last sync instead of Start.
	Scheduled bool
}

// Orchestrator drives sync passes. A pass runs single-threaded through
// its stages; passes for different users may run concurrently, sharing
// only the dimension tables, which tolerate concurrent find-or-create.
type Orchestrator struct {
	db      *database.DB
	cfg     *config.Config
	guard   AuthGuard
	clients ClientFactory
}

func NewOrchestrator(db *database.DB, cfg *config.Config, guard AuthGuard, clients ClientFactory) *Orchestrator {
	return &Orchestrator{db: db, cfg: cfg, guard: guard, clients: clients}
}

// Run executes one pass and always returns a result; the result status
// carries the outcome. Stage failures are isolated and downgrade the
// status to partial rather than aborting the pass.
func (o *Orchestrator) Run(ctx context.Context, opts PassOptions) *models.SyncResult {
	now := time.Now().UTC()
	result := &models.SyncResult{
		UserID:    opts.UserID,
		Status:    models.SyncSuccess,
		StartedAt: now,
	}
	o.transition(opts.UserID, stateIdle, stateCheckingAuth)

	profile, err := o.db.GetProfile(ctx, opts.UserID)
	if err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			return o.finish(result, stateAuthFailed, models.SyncAuthRequired, ErrNotConfigured)
		}
		return o.finish(result, stateFailed, models.SyncFailed, err)
	}

	if err := o.guard.EnsureValid(ctx, opts.UserID); err != nil {
		if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrNotConfigured) {
			return o.finish(result, stateAuthFailed, models.SyncAuthRequired, err)
		}
		return o.finish(result, stateFailed, models.SyncFailed, err)
	}

	client, err := o.clients(ctx, opts.UserID)
	if err != nil {
		return o.finish(result, stateFailed, models.SyncFailed, fmt.Errorf("failed to build remote client: %w", err))
	}

	windowStart, initial := o.computeWindow(opts, profile, now)
	result.WindowStart = &windowStart
	result.WindowEnd = &now
	result.InitialSync = initial

	pass := o.db.BeginSyncPass(opts.UserID)

	// Tag sync is isolated-first: its failure substitutes an empty
	// result and never blocks the later stages.
	o.transition(opts.UserID, stateCheckingAuth, stateSyncingTags)
	o.syncTags(ctx, pass, client, opts.AllTags, result)

	var timelines []*models.Timeline
	if opts.TimelineID != 0 {
		o.transition(opts.UserID, stateSyncingTags, stateSyncingActivities)
		t, err := o.db.GetTimeline(ctx, opts.TimelineID)
		if err == nil && t.UserID != opts.UserID {
			// Another user's timeline is indistinguishable from a
			// missing one to the caller.
			err = database.ErrTimelineNotFound
		}
		if err != nil {
			return o.finish(result, stateFailed, models.SyncFailed, fmt.Errorf("single-timeline sync: %w", err))
		}
		timelines = []*models.Timeline{t}
	} else {
		o.transition(opts.UserID, stateSyncingTags, stateSyncingTimelines)
		o.syncTimelines(ctx, pass, client, profile, result)

		o.transition(opts.UserID, stateSyncingTimelines, stateSyncingActivities)
		// The selection flag shapes future defaults only; a running
		// pass covers every known timeline.
		timelines, err = o.db.ListTimelines(ctx, opts.UserID)
		if err != nil {
			return o.finish(result, stateFailed, models.SyncFailed, err)
		}
	}

	o.syncActivities(ctx, pass, client, timelines, windowStart, now, result)

	o.transition(opts.UserID, stateSyncingActivities, stateFinalizing)
	// Last-sync advances in its own step so a late stage failure does
	// not hold it back when the bulk of the pass succeeded.
	if err := o.db.SetLastSync(ctx, opts.UserID, now); err != nil {
		result.RecordStage("finalize", err)
		metrics.SyncStageErrors.WithLabelValues("finalize").Inc()
	}

	result.FinishedAt = time.Now().UTC()
	o.transition(opts.UserID, stateFinalizing, stateDone)
	metrics.RecordSyncPass(string(result.Status), result.Duration())
	metrics.RecordSyncRecords(result.Timelines, result.TagCombos, result.Activities)
	logging.Info().
		Str("user_id", opts.UserID).
		Str("status", string(result.Status)).
		Int("timelines", result.Timelines).
		Int("tag_combinations", result.TagCombos).
		Int("activities", result.Activities).
		Int("stage_errors", len(result.StageErrors)).
		Dur("duration", result.Duration()).
		Msg("Sync pass finished")
	return result
}

// computeWindow picks the pass's activity window start. Explicit starts
// win; scheduled runs derive from last sync with a safety overlap; all
// windows are clamped so a pass never covers more than the configured
// maximum.
func (o *Orchestrator) computeWindow(opts PassOptions, profile *models.CredentialProfile, now time.Time) (time.Time, bool) {
	maxWindow := o.cfg.Sync.MaxWindow
	clamp := func(start time.Time) time.Time {
		if now.Sub(start) > maxWindow {
			return now.Add(-maxWindow)
		}
		return start
	}

	if opts.Start != nil {
		return clamp(opts.Start.UTC()), false
	}
	if opts.Scheduled && profile.LastSync != nil {
		return clamp(profile.LastSync.UTC().Add(-o.cfg.Sync.Overlap)), false
	}

	initialWindow := o.cfg.Sync.InitialWindow
	if initialWindow <= 0 || initialWindow > maxWindow {
		initialWindow = maxWindow
	}
	return now.Add(-initialWindow), profile.LastSync == nil
}

// syncTags fetches, normalizes, and writes tag combinations in one
// stage. Any failure is recorded and an empty tag set substituted.
func (o *Orchestrator) syncTags(ctx context.Context, pass *database.SyncTx, client Client, allTags bool, result *models.SyncResult) {
	raw, err := client.GetTagCombinations(ctx, allTags)
	if err != nil {
		o.stageFailed(result, "tags", err)
		return
	}
	combos, err := NormalizeTagCombinations(raw)
	if err != nil {
		o.stageFailed(result, "tags", err)
		return
	}

	err = pass.RunStage(ctx, "tags", func(st *database.Stage) error {
		for i := range combos {
			if err := reconcileTagCombination(ctx, st, &combos[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		o.stageFailed(result, "tags", err)
		return
	}
	result.TagCombos = len(combos)
}

// syncTimelines discovers and reconciles the user's timeline set.
func (o *Orchestrator) syncTimelines(ctx context.Context, pass *database.SyncTx, client Client, profile *models.CredentialProfile, result *models.SyncResult) {
	raw, err := client.GetTimelines(ctx)
	if err != nil {
		o.stageFailed(result, "timelines", err)
		return
	}
	remotes, err := NormalizeTimelines(raw)
	if err != nil {
		o.stageFailed(result, "timelines", err)
		return
	}

	err = pass.RunStage(ctx, "timelines", func(st *database.Stage) error {
		for i := range remotes {
			if _, err := reconcileTimeline(ctx, st, &remotes[i], profile.SyncNewTimelines); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		o.stageFailed(result, "timelines", err)
		return
	}
	result.Timelines = len(remotes)
}

// syncActivities fetches and writes each timeline's activities for the
// window. Failures are isolated per timeline and per write batch, so
// one bad timeline or batch never discards the others' work.
func (o *Orchestrator) syncActivities(ctx context.Context, pass *database.SyncTx, client Client, timelines []*models.Timeline, from, to time.Time, result *models.SyncResult) {
	for _, t := range timelines {
		if err := o.syncTimelineActivities(ctx, pass, client, t, from, to, result); err != nil {
			o.stageFailed(result, "activities/"+t.TimelineKey, err)
		}
	}
}

func (o *Orchestrator) syncTimelineActivities(ctx context.Context, pass *database.SyncTx, client Client, t *models.Timeline, from, to time.Time, result *models.SyncResult) error {
	activitiesURL, err := o.activitiesURL(ctx, t)
	if err != nil {
		return err
	}

	raw, err := client.GetActivities(ctx, t.TimelineKey, from, to, activitiesURL)
	if err != nil {
		return err
	}
	activities, err := NormalizeActivities(raw)
	if err != nil {
		return err
	}

	batchSize := o.cfg.Sync.BatchSize
	if batchSize < 1 {
		batchSize = 100
	}

	written := 0
	for offset := 0; offset < len(activities); offset += batchSize {
		batch := activities[offset:min(offset+batchSize, len(activities))]
		stage := fmt.Sprintf("activities/%s/batch_%d", t.TimelineKey, offset)

		err := pass.RunStage(ctx, stage, func(st *database.Stage) error {
			for i := range batch {
				if err := reconcileActivity(ctx, st, t.ID, &batch[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			o.stageFailed(result, stage, err)
			continue
		}
		metrics.SyncBatchSize.Observe(float64(len(batch)))
		written += len(batch)
	}
	result.Activities += written

	// The timeline's own last-sync marker advances in its own step.
	err = pass.RunStage(ctx, "timeline_last_sync", func(st *database.Stage) error {
		return st.SetTimelineLastSync(ctx, t.ID, &to)
	})
	if err != nil {
		logging.Warn().Err(err).Str("timeline_key", t.TimelineKey).Msg("Failed to advance timeline last-sync marker")
	}
	return nil
}

// activitiesURL resolves the timeline's activities endpoint from its
// link capabilities. An empty result makes the client fall back to the
// default path.
func (o *Orchestrator) activitiesURL(ctx context.Context, t *models.Timeline) (string, error) {
	links, err := o.db.GetTimelineLinks(ctx, t.ID)
	if err != nil {
		return "", err
	}
	for _, link := range links {
		if link.Rel == models.RelActivities {
			return link.URLFor(t.TimelineKey), nil
		}
	}
	return "", nil
}

// stageFailed records an isolated stage failure on the result.
func (o *Orchestrator) stageFailed(result *models.SyncResult, stage string, err error) {
	result.RecordStage(stage, err)
	metrics.SyncStageErrors.WithLabelValues(stageMetricLabel(stage)).Inc()
	logging.Error().Err(err).Str("user_id", result.UserID).Str("stage", stage).Msg("Sync stage failed")
}

// stageMetricLabel collapses per-timeline stage names to a bounded
// label set.
func stageMetricLabel(stage string) string {
	for _, prefix := range []string{"tags", "timelines", "activities", "finalize"} {
		if stage == prefix || len(stage) > len(prefix) && stage[:len(prefix)+1] == prefix+"/" {
			return prefix
		}
	}
	return "other"
}

// finish closes a pass that ended before or outside the stage loop.
func (o *Orchestrator) finish(result *models.SyncResult, state passState, status models.SyncStatus, err error) *models.SyncResult {
	result.Status = status
	result.FinishedAt = time.Now().UTC()
	if err != nil {
		result.StageErrors = append(result.StageErrors, models.StageError{Stage: "pass", Err: err.Error()})
	}
	metrics.RecordSyncPass(string(status), result.Duration())
	logging.Warn().Err(err).Str("user_id", result.UserID).Str("state", string(state)).Str("status", string(status)).Msg("Sync pass ended early")
	return result
}

// transition logs a state machine edge.
func (o *Orchestrator) transition(userID string, from, to passState) {
	logging.Debug().Str("user_id", userID).Str("from", string(from)).Str("to", string(to)).Msg("Sync state transition")
}
