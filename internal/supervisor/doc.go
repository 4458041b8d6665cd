// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package supervisor builds the suture supervision tree that keeps the
// scheduler and HTTP server running. A crash in the sync layer restarts
// that layer without taking the API down.
package supervisor
