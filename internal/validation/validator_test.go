// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	UserID string `validate:"required"`
	Scheme string `validate:"omitempty,oneof=bearer ntlm"`
	Limit  int    `validate:"min=0,max=1000"`
	From   string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name     string
		req      sampleRequest
		wantErr  bool
		contains string
	}{
		{
			name: "valid",
			req:  sampleRequest{UserID: "u1", Scheme: "bearer", Limit: 100},
		},
		{
			name: "valid with optional fields empty",
			req:  sampleRequest{UserID: "u1"},
		},
		{
			name:     "missing required",
			req:      sampleRequest{Limit: 10},
			wantErr:  true,
			contains: "UserID is required",
		},
		{
			name:     "bad enum",
			req:      sampleRequest{UserID: "u1", Scheme: "kerberos"},
			wantErr:  true,
			contains: "must be one of",
		},
		{
			name:     "limit too large",
			req:      sampleRequest{UserID: "u1", Limit: 5000},
			wantErr:  true,
			contains: "must be at most 1000",
		},
		{
			name:     "bad timestamp",
			req:      sampleRequest{UserID: "u1", From: "yesterday"},
			wantErr:  true,
			contains: "RFC3339",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestRequestErrorDetails(t *testing.T) {
	err := ValidateStruct(&sampleRequest{Scheme: "x", Limit: -1})
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}
	if len(err.Fields()) != 3 {
		t.Fatalf("field errors = %d, want 3", len(err.Fields()))
	}
	details := err.Details()
	if _, ok := details["fields"]; !ok {
		t.Errorf("multi-error details = %v, want fields list", details)
	}

	single := ValidateStruct(&sampleRequest{})
	if single == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}
	if details := single.Details(); details["field"] != "UserID" {
		t.Errorf("single-error details = %v", details)
	}
}
