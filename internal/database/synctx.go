// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/metrics"
)

// querier is satisfied by both *sql.DB and *sql.Tx so CRUD helpers can run
// inside or outside a sync stage.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SyncTx is the write capability for synchronized tables. It exists only
// for the duration of one sync pass; activities, timelines and tag
// combinations cannot be written without one.
type SyncTx struct {
	db     *DB
	userID string
}

// BeginSyncPass opens a sync pass for the user. Each stage started from the
// returned SyncTx runs in its own transaction, so a failed stage rolls back
// alone and already-committed stages stay committed.
func (db *DB) BeginSyncPass(userID string) *SyncTx {
	return &SyncTx{db: db, userID: userID}
}

// UserID returns the user this pass belongs to.
func (s *SyncTx) UserID() string {
	return s.userID
}

// Stage is the transactional scope handed to a stage callback. All writes
// and reads through a Stage see the stage's uncommitted state.
type Stage struct {
	tx     *sql.Tx
	userID string
}

// UserID returns the user the enclosing pass belongs to.
func (st *Stage) UserID() string {
	return st.userID
}

// RunStage runs fn inside a dedicated transaction. On error the
// transaction is rolled back and the error is returned; on success it is
// committed. A panic inside fn rolls back and re-panics.
func (s *SyncTx) RunStage(ctx context.Context, name string, fn func(st *Stage) error) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s stage: %w", name, err)
	}

	st := &Stage{tx: tx, userID: s.userID}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(st); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error().Err(rbErr).Str("stage", name).Msg("Stage rollback failed")
		}
		metrics.DBStageRollbacks.WithLabelValues(name).Inc()
		return err
	}

	if err := tx.Commit(); err != nil {
		metrics.DBStageRollbacks.WithLabelValues(name).Inc()
		return fmt.Errorf("failed to commit %s stage: %w", name, err)
	}
	return nil
}
