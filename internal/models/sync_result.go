// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package models

import "time"

// SyncStatus is the terminal outcome of a sync pass.
type SyncStatus string

const (
	// SyncSuccess means every stage committed.
	SyncSuccess SyncStatus = "success"
	// SyncPartial means at least one stage rolled back but others committed.
	SyncPartial SyncStatus = "partial"
	// SyncAuthRequired means credentials were invalid and automatic
	// re-authentication was disabled or failed.
	SyncAuthRequired SyncStatus = "auth_required"
	// SyncFailed means the pass aborted before committing anything.
	SyncFailed SyncStatus = "failed"
)

// StageError records a stage that rolled back during a pass.
type StageError struct {
	Stage string `json:"stage"`
	Err   string `json:"error"`
}

// SyncResult summarizes one sync pass for one user.
type SyncResult struct {
	UserID      string       `json:"user_id"`
	Status      SyncStatus   `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Timelines   int          `json:"timelines"`
	TagCombos   int          `json:"tag_combinations"`
	Activities  int          `json:"activities"`
	StageErrors []StageError `json:"stage_errors,omitempty"`
	WindowStart *time.Time   `json:"window_start,omitempty"`
	WindowEnd   *time.Time   `json:"window_end,omitempty"`
	InitialSync bool         `json:"initial_sync"`
}

// RecordStage appends a stage failure and downgrades the status to partial
// unless a harder failure is already recorded.
func (r *SyncResult) RecordStage(stage string, err error) {
	if err == nil {
		return
	}
	r.StageErrors = append(r.StageErrors, StageError{Stage: stage, Err: err.Error()})
	if r.Status == SyncSuccess || r.Status == "" {
		r.Status = SyncPartial
	}
}

// Duration returns the wall-clock length of the pass.
func (r *SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
