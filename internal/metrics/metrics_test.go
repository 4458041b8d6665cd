// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSyncRecords(t *testing.T) {
	before := testutil.ToFloat64(SyncRecordsProcessed.WithLabelValues("activity"))
	RecordSyncRecords(2, 3, 5)
	after := testutil.ToFloat64(SyncRecordsProcessed.WithLabelValues("activity"))
	if after-before != 5 {
		t.Errorf("activity counter delta = %v, want 5", after-before)
	}
	if d := testutil.ToFloat64(SyncRecordsProcessed.WithLabelValues("timeline")); d < 2 {
		t.Errorf("timeline counter = %v, want >= 2", d)
	}
}

func TestRecordAuthAttempt(t *testing.T) {
	before := testutil.ToFloat64(AuthAttempts.WithLabelValues("bearer", "failure"))
	RecordAuthAttempt("bearer", false)
	after := testutil.ToFloat64(AuthAttempts.WithLabelValues("bearer", "failure"))
	if after-before != 1 {
		t.Errorf("failure counter delta = %v, want 1", after-before)
	}
}

func TestRecordSyncPassSetsLastSuccess(t *testing.T) {
	RecordSyncPass("success", 2*time.Second)
	ts := testutil.ToFloat64(SyncLastSuccess)
	if ts == 0 {
		t.Error("SyncLastSuccess not set on success")
	}

	prev := ts
	RecordSyncPass("failed", time.Second)
	if got := testutil.ToFloat64(SyncLastSuccess); got != prev {
		t.Error("SyncLastSuccess must not move on failure")
	}
}

func TestResultLabel(t *testing.T) {
	if resultLabel(true) != "success" || resultLabel(false) != "failure" {
		t.Error("resultLabel mapping broken")
	}
}
