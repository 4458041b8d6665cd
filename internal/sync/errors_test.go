// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"errors"
	"testing"
)

func TestDataQualityErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *DataQualityError
		want string
	}{
		{
			name: "without detail",
			err:  &DataQualityError{Kind: "activity", Field: "entity ID"},
			want: "sync: activity missing usable entity ID",
		},
		{
			name: "with detail",
			err:  &DataQualityError{Kind: "timeline", Field: "identifier", Detail: "Work:PC"},
			want: "sync: timeline missing usable identifier (Work:PC)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthErrorMatchesSentinel(t *testing.T) {
	err := &AuthError{Op: "token exchange", Err: errors.New("rejected")}
	if !errors.Is(err, ErrAuthRequired) {
		t.Error("AuthError does not match ErrAuthRequired")
	}
}
