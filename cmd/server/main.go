// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Command server runs the ManicSync daemon: the sync scheduler and the
// HTTP API under one supervision tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/manicsync/manicsync/internal/api"
	"github.com/manicsync/manicsync/internal/auth"
	"github.com/manicsync/manicsync/internal/config"
	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/scheduler"
	"github.com/manicsync/manicsync/internal/supervisor"
	"github.com/manicsync/manicsync/internal/supervisor/services"
	"github.com/manicsync/manicsync/internal/sync"
	"github.com/manicsync/manicsync/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("server", cfg.ManicTime.URL).Msg("Starting ManicSync")

	db, err := database.New(database.Options{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Database close failed")
		}
	}()

	store, err := vault.Open(cfg.Vault.Path, cfg.Vault.EncryptionKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open secret vault")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Vault close failed")
		}
	}()

	authMgr := auth.NewManager(db, store, cfg)
	orchestrator := sync.NewOrchestrator(db, cfg, authMgr, authMgr.ClientFactory())
	sched := scheduler.New(db, orchestrator, authMgr, cfg)

	handler := api.NewHandler(db, orchestrator, authMgr, cfg)
	router := api.NewRouter(handler, api.NewMiddleware(api.MiddlewareFromServer(cfg.Server)))
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, supervisor.DefaultTreeConfig().ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}
	logging.Info().Msg("ManicSync stopped")
}
