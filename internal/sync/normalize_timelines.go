// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"crypto/md5" //nolint:gosec // deterministic fallback ID, not security
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/models"
)

// timelineTypeCategories maps schema-name substrings to display types,
// checked in order.
var timelineTypeCategories = []struct {
	substr string
	label  string
}{
	{"ComputerUsage", "Computer Usage"},
	{"Applications", "Applications"},
	{"Documents", "Documents"},
	{"Web", "Web"},
	{"Group", "Group"},
}

// NormalizeTimelines converts a raw timeline payload into canonical
// records. Records are never dropped for a missing identifier: a
// deterministic hash of (name, device) stands in, and only a record
// with no identifying information at all gets a random key, which is
// logged as a data-quality problem.
func NormalizeTimelines(raw []byte) ([]models.RemoteTimeline, error) {
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, &RemoteError{Endpoint: "timelines", Err: err}
	}

	records := resolveRecords(doc, containerOptions{
		keys:         []string{"timelines", "items", "data"},
		identityKeys: []string{"timelineId", "id", "timelineKey"},
		substring:    "timeline",
	})

	out := make([]models.RemoteTimeline, 0, len(records))
	for _, rec := range records {
		m, ok := asMap(rec)
		if !ok {
			logging.Warn().Interface("record", rec).Msg("Skipping non-object timeline record")
			continue
		}
		out = append(out, normalizeTimeline(m))
	}
	return out, nil
}

func normalizeTimeline(m map[string]any) models.RemoteTimeline {
	key := mapString(m, "timelineKey", "key")
	legacyID := mapString(m, "timelineId", "id", "timeline_id")

	if key == "" && legacyID == "" {
		if nested, ok := asMap(m["timeline"]); ok {
			key = mapString(nested, "timelineKey", "key")
			legacyID = mapString(nested, "timelineId", "id")
		}
	}

	deviceDisplayName := mapString(m, "deviceDisplayName")
	deviceName := ""
	var env *models.EnvironmentRef
	if home, ok := asMap(m["homeEnvironment"]); ok {
		deviceName = mapString(home, "deviceName")
		if envID := mapString(home, "environmentId"); envID != "" {
			env = &models.EnvironmentRef{
				EnvironmentID:     envID,
				DeviceName:        deviceName,
				DeviceDisplayName: deviceDisplayName,
			}
		}
	}

	identity := key
	if identity == "" {
		identity = legacyID
	}
	if identity == "" {
		identity = fallbackTimelineID(mapString(m, "name"), deviceDisplayName, deviceName)
	}
	if key == "" {
		key = identity
	}
	// The legacy ID is kept even when it doubles as the key: once the
	// server starts exposing a real timelineKey for the stream, the
	// (user, legacyID) fallback adopts this row instead of duplicating.

	var schema *models.SchemaRef
	schemaName := ""
	if sm, ok := asMap(m["schema"]); ok {
		schemaName = mapString(sm, "name")
		version := mapString(sm, "version")
		if schemaName != "" {
			schema = &models.SchemaRef{Name: schemaName, Version: version}
			if bm, ok := asMap(sm["baseSchema"]); ok {
				baseName := mapString(bm, "name")
				if baseName != "" {
					schema.BaseSchema = &models.SchemaRef{
						Name:    baseName,
						Version: mapString(bm, "version"),
					}
				}
			}
		}
	}

	timelineType := deriveTimelineType(schemaName, m)

	ownerUsername, ownerDisplayName := "", ""
	if om, ok := asMap(m["owner"]); ok {
		ownerUsername = mapString(om, "username")
		ownerDisplayName = mapString(om, "displayName")
	}

	name := mapString(m, "name")
	if deviceDisplayName != "" || deviceName != "" || name == "" {
		name = models.DeriveTimelineName(deviceDisplayName, deviceName, timelineType, key)
	}

	var lastUpdate *time.Time
	if lu, ok := asMap(m["lastUpdate"]); ok {
		if raw := mapString(lu, "updatedUtcTime"); raw != "" {
			if t, err := ParseTimestamp(raw); err == nil {
				lastUpdate = &t
			} else {
				logging.Warn().Str("timeline_key", key).Str("value", raw).Msg("Could not parse timeline last update time")
			}
		}
	}

	var links []models.LinkRef
	if rawLinks, ok := m["links"].([]any); ok {
		for _, rl := range rawLinks {
			lm, ok := asMap(rl)
			if !ok {
				continue
			}
			rel := mapString(lm, "rel")
			href := mapString(lm, "href")
			if rel == "" || href == "" {
				continue
			}
			links = append(links, models.LinkRef{
				Rel:     rel,
				Pattern: models.PatternFromURL(href, key),
			})
		}
	}

	return models.RemoteTimeline{
		TimelineKey:       key,
		LegacyID:          legacyID,
		Name:              name,
		TimelineType:      timelineType,
		OwnerUsername:     ownerUsername,
		OwnerDisplayName:  ownerDisplayName,
		LastUpdate:        lastUpdate,
		LastChangeID:      mapString(m, "lastChangeId"),
		PublishKey:        mapString(m, "publishKey"),
		UpdateProtocol:    mapString(m, "updateProtocol"),
		Timestamp:         mapString(m, "timestamp"),
		Environment:       env,
		Schema:            schema,
		DeviceDisplayName: deviceDisplayName,
		Links:             links,
	}
}

// fallbackTimelineID derives an identifier for a timeline missing every
// standard identity field. A hash of (name, device) keeps the ID stable
// across syncs; two distinct timelines sharing name and device will
// collide, which is accepted as an upstream data problem.
func fallbackTimelineID(name, deviceDisplayName, deviceName string) string {
	device := deviceDisplayName
	if device == "" {
		device = deviceName
	}
	source := name + ":" + device
	if strings.Trim(source, ":") != "" {
		sum := md5.Sum([]byte(source)) //nolint:gosec // deterministic fallback ID, not security
		logging.Warn().Err(&DataQualityError{Kind: "timeline", Field: "identifier", Detail: source}).
			Msg("Timeline missing ID, using deterministic fallback")
		return "key_" + hex.EncodeToString(sum[:])[:16]
	}
	id := "key_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	logging.Warn().Str("generated_id", id).Msg("Timeline has no identifying information, generated random ID")
	return id
}

// deriveTimelineType maps a schema name to a display type, falling back
// to the schema name's last path segment, then to an explicit field.
func deriveTimelineType(schemaName string, m map[string]any) string {
	if schemaName != "" {
		for _, cat := range timelineTypeCategories {
			if strings.Contains(schemaName, cat.substr) {
				return cat.label
			}
		}
		parts := strings.Split(schemaName, "/")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}
	return mapString(m, "type", "timelineType")
}
