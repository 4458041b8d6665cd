// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package database

import (
	"errors"
	"io"
	"strings"
)

var (
	// ErrProfileNotFound is returned when no credential profile exists.
	ErrProfileNotFound = errors.New("credential profile not found")
	// ErrTimelineNotFound is returned when no timeline matches a lookup.
	ErrTimelineNotFound = errors.New("timeline not found")
	// ErrEnvironmentNotFound is returned when no environment matches.
	ErrEnvironmentNotFound = errors.New("environment not found")
	// ErrSchemaNotFound is returned when no schema matches.
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrTagCombinationNotFound is returned when no tag combination matches.
	ErrTagCombinationNotFound = errors.New("tag combination not found")
)

// isUniqueConstraintError checks if an error is a unique constraint
// violation. DuckDB error messages contain "UNIQUE constraint" or
// "Duplicate key".
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "unique constraint") || strings.Contains(errMsg, "duplicate key")
}

// closeQuietly closes a resource and explicitly ignores any error. Used in
// error paths where Close errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
