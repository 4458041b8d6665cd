// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Container resolution. Endpoints wrap their record list differently
// across server versions: under a well-known key, under an arbitrary
// key, as a bare array, or as a single unwrapped record. resolveRecords
// walks those shapes in a fixed priority order so normalizers see a
// plain record slice regardless of generation.

type containerOptions struct {
	// keys are checked first, in order.
	keys []string
	// identityKeys mark a mapping as a single record of the target
	// type when one of them is present at the top level.
	identityKeys []string
	// substring, when set, accepts any key containing it (case
	// insensitive) as a last resort.
	substring string
}

// decodeDocument decodes raw JSON into a loose value.
func decodeDocument(raw []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return doc, nil
}

// resolveRecords extracts the record list from a decoded payload.
// Returns nil when no plausible container is found.
func resolveRecords(doc any, opts containerOptions) []any {
	if list, ok := doc.([]any); ok {
		return list
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}

	for _, key := range opts.keys {
		if list, ok := m[key].([]any); ok {
			return list
		}
	}

	// Any key holding a non-empty list.
	for _, v := range m {
		if list, ok := v.([]any); ok && len(list) > 0 {
			return list
		}
	}

	// The mapping itself as a single record.
	for _, key := range opts.identityKeys {
		if _, ok := m[key]; ok {
			return []any{m}
		}
	}

	if opts.substring != "" {
		for k, v := range m {
			if !strings.Contains(strings.ToLower(k), opts.substring) {
				continue
			}
			switch inner := v.(type) {
			case []any:
				return inner
			case map[string]any:
				return []any{inner}
			}
		}
	}
	return nil
}

// asMap coerces a record entry to a mapping.
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// mapString returns the first non-empty string under keys.
func mapString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// mapBool returns the first present boolean under keys.
func mapBool(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if b, ok := m[key].(bool); ok {
			return b
		}
	}
	return false
}

// mapStrings coerces a list-or-scalar field to a string slice.
func mapStrings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}
