// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeTimelinesWrapped(t *testing.T) {
	raw := []byte(`{"timelines":[{
		"timelineKey": "abc123",
		"deviceDisplayName": "Laptop1",
		"schema": {"name": "ManicTime/Documents", "version": "1"}
	}]}`)

	out, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("NormalizeTimelines() failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("record count = %d, want 1", len(out))
	}

	tl := out[0]
	if tl.TimelineKey != "abc123" {
		t.Errorf("TimelineKey = %q, want abc123", tl.TimelineKey)
	}
	if tl.TimelineType != "Documents" {
		t.Errorf("TimelineType = %q, want Documents", tl.TimelineType)
	}
	if tl.Schema == nil || tl.Schema.Name != "ManicTime/Documents" || tl.Schema.Version != "1" {
		t.Errorf("Schema = %+v", tl.Schema)
	}
	// Device present, so the display name is derived.
	if tl.Name != "Laptop1 - Documents" {
		t.Errorf("Name = %q, want Laptop1 - Documents", tl.Name)
	}
}

func TestNormalizeTimelinesBareArray(t *testing.T) {
	raw := []byte(`[{"timelineId": "legacy-9", "name": "Manual"}]`)
	out, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("NormalizeTimelines() failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("record count = %d, want 1", len(out))
	}
	// With no timelineKey the legacy ID doubles as the key but is still
	// kept, so the row is adopted once a real key appears.
	if out[0].TimelineKey != "legacy-9" || out[0].LegacyID != "legacy-9" {
		t.Errorf("identity = (%q, %q), want (legacy-9, legacy-9)", out[0].TimelineKey, out[0].LegacyID)
	}
	if out[0].Name != "Manual" {
		t.Errorf("Name = %q, want Manual", out[0].Name)
	}
}

func TestNormalizeTimelinesIdentityPrecedence(t *testing.T) {
	raw := []byte(`{"timelines":[{"timelineKey": "k1", "timelineId": "old-1"}]}`)
	out, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("NormalizeTimelines() failed: %v", err)
	}
	if out[0].TimelineKey != "k1" || out[0].LegacyID != "old-1" {
		t.Errorf("identity = (%q, %q), want (k1, old-1)", out[0].TimelineKey, out[0].LegacyID)
	}
}

func TestNormalizeTimelinesNestedIdentity(t *testing.T) {
	raw := []byte(`{"items":[{"timeline": {"timelineKey": "nested-key"}}]}`)
	out, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("NormalizeTimelines() failed: %v", err)
	}
	if len(out) != 1 || out[0].TimelineKey != "nested-key" {
		t.Errorf("out = %+v, want one record keyed nested-key", out)
	}
}

func TestNormalizeTimelinesDeterministicFallbackID(t *testing.T) {
	raw := []byte(`{"timelines":[{"name": "Tracker", "deviceDisplayName": "Desk-PC"}]}`)

	first, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("NormalizeTimelines() failed: %v", err)
	}
	second, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("second NormalizeTimelines() failed: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("record counts = %d, %d, want 1, 1", len(first), len(second))
	}

	key := first[0].TimelineKey
	if !strings.HasPrefix(key, "key_") || len(key) != len("key_")+16 {
		t.Errorf("fallback key = %q, want key_ plus 16 hex chars", key)
	}
	// Same (name, device) always hashes to the same key across passes.
	if second[0].TimelineKey != key {
		t.Errorf("fallback key unstable: %q vs %q", key, second[0].TimelineKey)
	}
}

func TestNormalizeTimelinesRandomFallbackID(t *testing.T) {
	raw := []byte(`{"timelines":[{}]}`)
	out, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("NormalizeTimelines() failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("record count = %d, want 1", len(out))
	}
	if !strings.HasPrefix(out[0].TimelineKey, "key_") {
		t.Errorf("generated key = %q, want key_ prefix", out[0].TimelineKey)
	}
}

func TestNormalizeTimelinesEnvironmentAndOwner(t *testing.T) {
	raw := []byte(`{"timelines":[{
		"timelineKey": "k1",
		"deviceDisplayName": "Laptop1",
		"homeEnvironment": {"deviceName": "LAPTOP-01", "environmentId": "env-7"},
		"owner": {"username": "alice", "displayName": "Alice A."},
		"lastUpdate": {"updatedUtcTime": "2024-03-15T09:30:00"},
		"links": [
			{"rel": "activities", "href": "https://mt.example/api/timelines/k1/activities"},
			{"rel": "", "href": "https://mt.example/ignored"}
		]
	}]}`)

	out, err := NormalizeTimelines(raw)
	if err != nil {
		t.Fatalf("NormalizeTimelines() failed: %v", err)
	}
	tl := out[0]

	if tl.Environment == nil || tl.Environment.EnvironmentID != "env-7" || tl.Environment.DeviceName != "LAPTOP-01" {
		t.Errorf("Environment = %+v", tl.Environment)
	}
	if tl.OwnerUsername != "alice" || tl.OwnerDisplayName != "Alice A." {
		t.Errorf("owner = (%q, %q)", tl.OwnerUsername, tl.OwnerDisplayName)
	}
	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	if tl.LastUpdate == nil || !tl.LastUpdate.Equal(want) {
		t.Errorf("LastUpdate = %v, want %v", tl.LastUpdate, want)
	}

	if len(tl.Links) != 1 {
		t.Fatalf("link count = %d, want 1 (empty rel dropped)", len(tl.Links))
	}
	if tl.Links[0].Rel != "activities" {
		t.Errorf("link rel = %q", tl.Links[0].Rel)
	}
	if !strings.Contains(tl.Links[0].Pattern, "{timelineKey}") {
		t.Errorf("link pattern %q not templated", tl.Links[0].Pattern)
	}
}

func TestDeriveTimelineType(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		m      map[string]any
		want   string
	}{
		{"computer usage", "ManicTime/ComputerUsage", nil, "Computer Usage"},
		{"applications", "ManicTime/Applications", nil, "Applications"},
		{"web", "ManicTime/Web", nil, "Web"},
		{"group", "ManicTime/Group", nil, "Group"},
		{"unknown schema uses last segment", "Vendor/Custom/Extra", nil, "Extra"},
		{"no schema falls back to field", "", map[string]any{"type": "Manual"}, "Manual"},
		{"timelineType alias", "", map[string]any{"timelineType": "Manual"}, "Manual"},
		{"nothing", "", map[string]any{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveTimelineType(tt.schema, tt.m); got != tt.want {
				t.Errorf("deriveTimelineType(%q) = %q, want %q", tt.schema, got, tt.want)
			}
		})
	}
}

func TestNormalizeTimelinesBadPayload(t *testing.T) {
	if _, err := NormalizeTimelines([]byte(`not json`)); err == nil {
		t.Error("NormalizeTimelines() accepted invalid JSON")
	}
}
