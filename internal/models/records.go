// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package models

import (
	"math"
	"strings"
	"time"
)

// Environment is a device/host reporting activity. Environments are a shared
// dimension: the remote environment identifier is unique across all users.
type Environment struct {
	ID                int64  `json:"id"`
	EnvironmentID     string `json:"environment_id"`
	DeviceName        string `json:"device_name"`
	DeviceDisplayName string `json:"device_display_name"`
}

// Schema is a remote activity-type definition. (Name, Version) is unique.
// BaseSchemaID forms a shallow self-referential DAG, typically depth <= 2.
type Schema struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	BaseSchemaID *int64 `json:"base_schema_id,omitempty"`
}

// DisplayName returns "Name vVersion" for presentation.
func (s *Schema) DisplayName() string {
	return s.Name + " v" + s.Version
}

// Timeline is a remote per-user data stream. (UserID, TimelineKey) is unique.
type Timeline struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	TimelineKey string `json:"timeline_key"`
	// LegacyID is the pre-timelineKey identifier, kept as a matching
	// fallback for records created before the key existed.
	LegacyID          string     `json:"legacy_id,omitempty"`
	Name              string     `json:"name"`
	EnvironmentID     *int64     `json:"environment_id,omitempty"`
	DeviceDisplayName string     `json:"device_display_name,omitempty"`
	SchemaID          *int64     `json:"schema_id,omitempty"`
	TimelineType      string     `json:"timeline_type,omitempty"`
	OwnerUsername     string     `json:"owner_username,omitempty"`
	OwnerDisplayName  string     `json:"owner_display_name,omitempty"`
	LastUpdate        *time.Time `json:"last_update,omitempty"`
	LastChangeID      string     `json:"last_change_id,omitempty"`
	PublishKey        string     `json:"publish_key,omitempty"`
	UpdateProtocol    string     `json:"update_protocol,omitempty"`
	Timestamp         string     `json:"timestamp,omitempty"`
	Selected          bool       `json:"selected"`
	LastSync          *time.Time `json:"last_sync,omitempty"`
}

// DeriveTimelineName builds a display name from the device and type fields,
// falling back to a key prefix when neither is known.
func DeriveTimelineName(deviceDisplayName, deviceName, timelineType, timelineKey string) string {
	device := deviceDisplayName
	if device == "" {
		device = deviceName
	}
	switch {
	case device != "" && timelineType != "":
		return device + " - " + timelineType
	case device != "":
		return device
	case timelineType != "":
		return timelineType
	case len(timelineKey) >= 8:
		return timelineKey[:8]
	case timelineKey != "":
		return timelineKey
	default:
		return "Unnamed Timeline"
	}
}

// LinkCapability is a named remote relation plus a URL template with a
// {timelineKey} placeholder. (Rel, Pattern) is unique; capabilities are shared
// across timelines via a many-to-many association.
type LinkCapability struct {
	ID      int64  `json:"id"`
	Rel     string `json:"rel"`
	Pattern string `json:"pattern"`
}

// Well-known link relations exposed by ManicTime timelines.
const (
	RelSelf           = "self"
	RelActivities     = "manictime/activities"
	RelGetChanges     = "manictime/getchanges"
	RelAddChanges     = "manictime/addchanges"
	RelEditProperties = "manictime/editproperties"
)

// TimelineKeyPlaceholder is substituted for the concrete timeline key when a
// URL is reduced to a reusable pattern.
const TimelineKeyPlaceholder = "{timelineKey}"

// URLFor expands the capability pattern for a concrete timeline key.
func (l *LinkCapability) URLFor(timelineKey string) string {
	if l.Pattern == "" || timelineKey == "" {
		return ""
	}
	return strings.ReplaceAll(l.Pattern, TimelineKeyPlaceholder, timelineKey)
}

// PatternFromURL reduces a concrete URL to a reusable pattern by substituting
// the timeline key back to the placeholder token.
func PatternFromURL(url, timelineKey string) string {
	if url == "" || timelineKey == "" {
		return url
	}
	return strings.ReplaceAll(url, timelineKey, TimelineKeyPlaceholder)
}

// TagCombination is a named, user-scoped grouping of tags.
// (UserID, EntityID) is unique.
type TagCombination struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	EntityID    string `json:"entity_id"`
	Name        string `json:"name"`
	Tags        string `json:"tags"` // comma-joined
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Billable    bool   `json:"billable"`
}

// MatchesTags reports whether every tag in the combination appears in the
// given activity tag set. An empty combination matches nothing.
func (c *TagCombination) MatchesTags(activityTags []string) bool {
	comboTags := SplitTags(c.Tags)
	if len(comboTags) == 0 {
		return false
	}
	have := make(map[string]bool, len(activityTags))
	for _, t := range activityTags {
		have[t] = true
	}
	for _, t := range comboTags {
		if !have[t] {
			return false
		}
	}
	return true
}

// Activity is a single tracked time interval. (UserID, TimelineID, EntityID)
// is unique. Start and end are timezone-naive UTC. Activities are owned by the
// sync pipeline; nothing else may write them.
type Activity struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	TimelineID  int64      `json:"timeline_id"`
	EntityID    string     `json:"entity_id"`
	Title       string     `json:"title"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    float64    `json:"duration"` // hours, derived
	Tags        string     `json:"tags,omitempty"`
	Application string     `json:"application,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// ComputeDuration returns the interval length in hours rounded to 2 decimals,
// or 0 when either endpoint is absent.
func ComputeDuration(start, end *time.Time) float64 {
	if start == nil || end == nil {
		return 0
	}
	hours := end.Sub(*start).Seconds() / 3600
	return math.Round(hours*100) / 100
}

// TagList returns the activity's tags as a slice.
func (a *Activity) TagList() []string {
	return SplitTags(a.Tags)
}

// SplitTags splits a comma-joined tag string, trimming whitespace and
// dropping empties.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JoinTags joins tags into the stored comma-joined form, dropping empties.
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}
