// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "naive treated as UTC",
			input: "2024-03-15T09:30:00",
			want:  time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "naive with fraction",
			input: "2024-03-15T09:30:00.1234567",
			want:  time.Date(2024, 3, 15, 9, 30, 0, 123456700, time.UTC),
		},
		{
			name:  "zulu suffix",
			input: "2024-03-15T09:30:00Z",
			want:  time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "positive offset converted, not truncated",
			// 09:30+02:00 is 07:30 UTC.
			input: "2024-03-15T09:30:00+02:00",
			want:  time.Date(2024, 3, 15, 7, 30, 0, 0, time.UTC),
		},
		{
			name:  "negative offset converted",
			input: "2024-03-15T09:30:00-05:00",
			want:  time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
		},
		{
			name:  "space separator",
			input: "2024-03-15 09:30:00",
			want:  time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "bare date",
			input: "2024-03-15",
			want:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "not a time",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimestamp(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) failed: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%q) location = %v, want UTC", tt.input, got.Location())
			}
		})
	}
}

func TestFormatQueryTime(t *testing.T) {
	// The server rejects offset suffixes in range parameters, so the
	// rendered form is naive UTC.
	in := time.Date(2024, 3, 15, 9, 30, 45, 0, time.FixedZone("CET", 3600))
	if got := FormatQueryTime(in); got != "2024-03-15T08:30:45" {
		t.Errorf("FormatQueryTime() = %q, want 2024-03-15T08:30:45", got)
	}
}
