// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package services

import (
	"context"
	"fmt"
)

// StartStopManager is the lifecycle shape shared by long-running
// components such as *scheduler.Scheduler.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService runs a StartStopManager under suture: Start on
// entry, block until cancellation, Stop on the way out.
type SchedulerService struct {
	manager StartStopManager
	name    string
}

// NewSchedulerService wraps the scheduler for supervision.
func NewSchedulerService(manager StartStopManager) *SchedulerService {
	return &SchedulerService{manager: manager, name: "scheduler"}
}

// Serve implements suture.Service. A Start failure returns immediately
// so suture applies its backoff policy.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("%s start: %w", s.name, err)
	}

	<-ctx.Done()

	// Stop blocks until the manager's goroutines drain.
	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("%s stop: %w", s.name, err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *SchedulerService) String() string {
	return s.name
}
