// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"strings"
	"testing"
)

func TestNormalizeTagCombinationsModern(t *testing.T) {
	raw := []byte(`{"tagCombinations":[
		{"tag": {"key": "t1", "tagCombination": "Billing, ClientA", "color": "#ff0000", "isBillable": true}},
		{"tag": {"key": "t2", "tagCombination": ""}},
		{"tag": {"key": "", "tagCombination": "Orphan"}}
	]}`)

	out, err := NormalizeTagCombinations(raw)
	if err != nil {
		t.Fatalf("NormalizeTagCombinations() failed: %v", err)
	}
	// Entries missing key or combination are dropped.
	if len(out) != 1 {
		t.Fatalf("record count = %d, want 1", len(out))
	}

	combo := out[0]
	if combo.EntityID != "t1" || combo.Name != "Billing, ClientA" {
		t.Errorf("combo = %+v", combo)
	}
	if !combo.Billable || combo.Color != "#ff0000" {
		t.Errorf("attrs = billable=%v color=%q", combo.Billable, combo.Color)
	}
}

func TestNormalizeTagCombinationsLegacy(t *testing.T) {
	raw := []byte(`[
		{"id": "42", "name": "Research", "tags": ["Research", "Deep"], "billable": true},
		{"tagId": "43", "description": "no name"},
		{"name": "No ID"}
	]`)

	out, err := NormalizeTagCombinations(raw)
	if err != nil {
		t.Fatalf("NormalizeTagCombinations() failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("record count = %d, want 3", len(out))
	}

	if out[0].EntityID != "42" || out[0].Name != "Research" || !out[0].Billable {
		t.Errorf("out[0] = %+v", out[0])
	}
	if len(out[0].Tags) != 2 || out[0].Tags[0] != "Research" {
		t.Errorf("out[0].Tags = %v", out[0].Tags)
	}

	if out[1].EntityID != "43" || out[1].Name != "Unnamed Tag" {
		t.Errorf("out[1] = %+v", out[1])
	}
	if out[1].Description != "no name" {
		t.Errorf("out[1].Description = %q", out[1].Description)
	}

	// Missing ID gets a generated one instead of being dropped.
	if !strings.HasPrefix(out[2].EntityID, "generated_") {
		t.Errorf("out[2].EntityID = %q, want generated_ prefix", out[2].EntityID)
	}
	if out[2].Name != "No ID" {
		t.Errorf("out[2].Name = %q", out[2].Name)
	}
}

func TestNormalizeTagCombinationsBareStrings(t *testing.T) {
	raw := []byte(`{"tags": ["Email", "Meetings", ""]}`)
	out, err := NormalizeTagCombinations(raw)
	if err != nil {
		t.Fatalf("NormalizeTagCombinations() failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("record count = %d, want 2 (empty string dropped)", len(out))
	}
	if out[0].Name != "Email" || len(out[0].Tags) != 1 || out[0].Tags[0] != "Email" {
		t.Errorf("out[0] = %+v", out[0])
	}
}

func TestNormalizeTagCombinationsEmpty(t *testing.T) {
	out, err := NormalizeTagCombinations([]byte(`{"tagCombinations": []}`))
	if err != nil {
		t.Fatalf("NormalizeTagCombinations() failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("record count = %d, want 0", len(out))
	}
}

func TestNormalizeTagCombinationsBadPayload(t *testing.T) {
	if _, err := NormalizeTagCombinations([]byte(`{broken`)); err == nil {
		t.Error("NormalizeTagCombinations() accepted invalid JSON")
	}
}
