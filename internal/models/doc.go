// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package models defines the domain records persisted by ManicSync and the
// canonical remote record shapes produced by the response normalizer.
//
// Raw ManicTime API payload types live in the manictime subpackage; the types
// here are what the rest of the application works with.
package models
