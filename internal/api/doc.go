// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package api exposes the HTTP surface: read endpoints over synced
// activities, timelines, and tag combinations, plus profile enrollment
// and sync-pass triggering.
//
// Routing uses chi with go-chi/cors and go-chi/httprate middleware.
// Every response, success or error, is wrapped in models.APIResponse.
package api
