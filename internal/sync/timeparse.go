// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"fmt"
	"strings"
	"time"
)

// The server mixes offset-suffixed and offset-free timestamps, often in
// the same payload. Everything is stored as naive UTC: offset-suffixed
// values are converted by applying the offset, never by truncating it,
// and offset-free values are taken as already UTC.

// queryTimeLayout is the offset-free form used in request parameters.
const queryTimeLayout = "2006-01-02T15:04:05"

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO8601-ish server timestamp into UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if hasOffset(s) {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized format", s)
}

// hasOffset reports whether s ends in Z or a +HH:MM / -HH:MM suffix.
// The date's own dashes must not count as an offset sign.
func hasOffset(s string) bool {
	if strings.HasSuffix(s, "Z") {
		return true
	}
	// An offset can only follow a time component.
	tpos := strings.IndexAny(s, "T ")
	if tpos < 0 {
		return false
	}
	rest := s[tpos+1:]
	return strings.ContainsAny(rest, "+") || strings.Contains(rest, "-")
}

// FormatQueryTime renders t for use in a date-range request parameter.
func FormatQueryTime(t time.Time) string {
	return t.UTC().Format(queryTimeLayout)
}
