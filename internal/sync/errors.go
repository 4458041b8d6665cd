// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"errors"
	"fmt"
)

// Error taxonomy for the sync engine. Configuration and authentication
// errors are fatal to a pass; remote errors are isolated at the stage
// boundary that saw them; data-quality errors mark a single skipped
// record and are never fatal.

var (
	// ErrNotConfigured means the user has no credential profile or the
	// server URL is unset. The pass cannot start.
	ErrNotConfigured = errors.New("sync: integration not configured")

	// ErrAuthRequired means credentials are missing, expired, or were
	// rejected, and automatic re-authentication did not recover them.
	ErrAuthRequired = errors.New("sync: authentication required")
)

// AuthError is a credential exchange or verification rejection.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sync: auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAuthRequired) match any AuthError.
func (e *AuthError) Is(target error) bool { return target == ErrAuthRequired }

// RemoteError is a transient remote failure: timeout, connection
// refusal, unexpected status, or an unparseable body. Stages that see
// one log it and continue with an empty result.
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sync: remote %s: HTTP %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sync: remote %s: %v", e.Endpoint, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemoteError reports whether err is (or wraps) a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// DataQualityError marks a single record that could not be normalized
// as-is, usually a missing identifier or a malformed timestamp. The
// normalizers log it as a warning and skip or repair the record.
type DataQualityError struct {
	Kind   string // "timeline", "tag_combination", "activity"
	Field  string
	Detail string
}

func (e *DataQualityError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("sync: %s missing usable %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("sync: %s missing usable %s (%s)", e.Kind, e.Field, e.Detail)
}
