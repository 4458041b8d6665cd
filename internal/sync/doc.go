// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package sync implements the synchronization engine: the ManicTime
// Server HTTP client, response normalization, identity reconciliation,
// and the per-user sync orchestrator.
//
// A sync pass for one user runs single-threaded through fixed stages
// (tags, timelines, activities, finalize). Each stage commits or rolls
// back on its own; a stage failure is recorded and the pass continues,
// so one bad endpoint never discards another stage's work. Passes for
// different users may run concurrently.
//
// The remote API is consumed defensively. The server has shipped
// several payload generations for the same endpoints, so fetched JSON
// goes through the normalizer before anything touches the database.
package sync
