// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package scheduler runs the periodic background work: sync passes for
// every eligible credential profile and the credential expiry sweep.
package scheduler

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/manicsync/manicsync/internal/config"
	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/sync"
)

// refreshHorizon is how far ahead the sweep looks: profiles expiring
// within a day are re-authenticated before they lapse.
const refreshHorizon = 24 * time.Hour

// PassRunner runs one sync pass. Satisfied by *sync.Orchestrator.
type PassRunner interface {
	Run(ctx context.Context, opts sync.PassOptions) *models.SyncResult
}

// CredentialSweeper re-authenticates profiles approaching expiry.
// Satisfied by *auth.Manager.
type CredentialSweeper interface {
	RefreshExpiring(ctx context.Context, within time.Duration)
}

// Scheduler drives periodic per-user sync passes and the auth sweep.
// Users are synced sequentially within a cycle; there is no value in
// hammering one upstream server in parallel.
type Scheduler struct {
	db      *database.DB
	runner  PassRunner
	sweeper CredentialSweeper
	cfg     *config.Config

	running  bool
	mu       stdsync.RWMutex
	cycleMu  stdsync.Mutex // prevents overlapping sync cycles
	stopChan chan struct{}
	wg       stdsync.WaitGroup
}

func New(db *database.DB, runner PassRunner, sweeper CredentialSweeper, cfg *config.Config) *Scheduler {
	return &Scheduler{
		db:       db,
		runner:   runner,
		sweeper:  sweeper,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sync and sweep loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	logging.Info().
		Dur("sync_interval", s.cfg.Sync.Interval).
		Dur("sweep_interval", s.cfg.Auth.SweepInterval).
		Msg("Starting scheduler")

	s.wg.Add(2)
	go s.syncLoop(ctx)
	go s.sweepLoop(ctx)
	return nil
}

// Stop shuts the loops down and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	logging.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	interval := s.cfg.Sync.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	interval := s.cfg.Auth.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweeper.RefreshExpiring(ctx, refreshHorizon)
		}
	}
}

// RunCycle syncs every eligible profile once. Eligible means the stored
// token has not expired; profiles needing interactive re-authentication
// are skipped, not failed. Per-user outcomes are isolated.
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	profiles, err := s.db.ListProfiles(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Scheduler could not list profiles")
		return
	}

	now := time.Now().UTC()
	for _, p := range profiles {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}

		if !p.TokenValidAt(now) && !p.AutoReauth {
			logging.Debug().Str("user_id", p.UserID).Msg("Skipping profile pending re-authentication")
			continue
		}

		result := s.runner.Run(ctx, sync.PassOptions{
			UserID:    p.UserID,
			Scheduled: true,
		})
		switch result.Status {
		case models.SyncSuccess:
		case models.SyncPartial:
			logging.Warn().Str("user_id", p.UserID).Int("stage_errors", len(result.StageErrors)).Msg("Scheduled sync finished partially")
		case models.SyncAuthRequired:
			logging.Warn().Str("user_id", p.UserID).Msg("Scheduled sync needs re-authentication")
		default:
			logging.Error().Str("user_id", p.UserID).Msg("Scheduled sync failed")
		}
	}
}
