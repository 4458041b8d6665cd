// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package models

import "time"

// Normalized shapes produced from raw server payloads. These are the
// canonical intermediate records the reconciler consumes; the raw wire
// types live in the manictime subpackage.

// SchemaRef identifies a schema referenced by a timeline.
type SchemaRef struct {
	Name       string
	Version    string
	BaseSchema *SchemaRef
}

// EnvironmentRef identifies the device a timeline reports from.
type EnvironmentRef struct {
	EnvironmentID     string
	DeviceName        string
	DeviceDisplayName string
}

// LinkRef is a single link exposed by a remote timeline, already reduced to
// a reusable pattern.
type LinkRef struct {
	Rel     string
	Pattern string
}

// RemoteTimeline is a timeline normalized from any of the server's historical
// response shapes.
type RemoteTimeline struct {
	TimelineKey       string
	LegacyID          string
	Name              string
	TimelineType      string
	OwnerUsername     string
	OwnerDisplayName  string
	LastUpdate        *time.Time
	LastChangeID      string
	PublishKey        string
	UpdateProtocol    string
	Timestamp         string
	Environment       *EnvironmentRef
	Schema            *SchemaRef
	DeviceDisplayName string
	Links             []LinkRef
}

// RemoteTagCombination is a tag combination normalized from either the modern
// tag editor payload or the legacy combination list.
type RemoteTagCombination struct {
	EntityID    string
	Name        string
	Tags        []string
	Description string
	Color       string
	Billable    bool
}

// RemoteActivity is an activity normalized from a timeline activity feed.
type RemoteActivity struct {
	EntityID    string
	Title       string
	StartTime   *time.Time
	EndTime     *time.Time
	Tags        []string
	Application string
	Notes       string
}
