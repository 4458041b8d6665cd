// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"bytes"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/models/manictime"
)

// defaultActivitySpan replaces a missing or zero duration so no
// activity is ever produced as exactly instantaneous.
const defaultActivitySpan = time.Minute

// NormalizeActivities converts a raw activity feed into canonical
// records. Records without an entity ID or a parseable start time are
// skipped with a warning; everything else is tolerated.
func NormalizeActivities(raw []byte) ([]models.RemoteActivity, error) {
	entities, err := decodeActivityEntities(raw)
	if err != nil {
		return nil, err
	}

	out := make([]models.RemoteActivity, 0, len(entities))
	for i := range entities {
		e := &entities[i]
		id := e.Identity()
		if id == "" {
			logging.Warn().Err(&DataQualityError{Kind: "activity", Field: "entity ID"}).
				Msg("Skipping activity record")
			continue
		}

		vals := e.Values
		if activityValuesEmpty(&vals) {
			vals = e.ActivityValues
		}

		start, end, ok := activityInterval(&vals)
		if !ok {
			logging.Warn().Err(&DataQualityError{Kind: "activity", Field: "time interval", Detail: id}).
				Msg("Skipping activity record")
			continue
		}

		title := vals.Name
		if title == "" {
			title = vals.Title
		}
		if title == "" {
			title = "Untitled"
		}
		application := vals.Application.Name
		if application != "" && !strings.Contains(title, application) {
			title = application + " - " + title
		}

		notes := vals.Notes
		if notes == "" {
			notes = vals.TextData
		}

		out = append(out, models.RemoteActivity{
			EntityID:    id,
			Title:       title,
			StartTime:   &start,
			EndTime:     &end,
			Tags:        vals.Tags,
			Application: application,
			Notes:       notes,
		})
	}
	return out, nil
}

// decodeActivityEntities accepts both the wrapped object form and a
// bare top-level array.
func decodeActivityEntities(raw []byte) ([]manictime.ActivityEntity, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []manictime.ActivityEntity
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, &RemoteError{Endpoint: "activities", Err: err}
		}
		return list, nil
	}
	var resp manictime.ActivitiesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &RemoteError{Endpoint: "activities", Err: err}
	}
	return resp.Records(), nil
}

func activityValuesEmpty(v *manictime.ActivityValues) bool {
	return v.Name == "" && v.Title == "" && v.TimeInterval == nil &&
		v.Start == "" && len(v.Tags) == 0
}

// activityInterval resolves the activity's time span. The nested
// timeInterval form carries start plus a duration in seconds; an
// explicit end wins when present.
func activityInterval(v *manictime.ActivityValues) (start, end time.Time, ok bool) {
	startStr, endStr := v.Start, v.End
	var durationSec float64
	if ti := v.TimeInterval; ti != nil {
		startStr, endStr = ti.Start, ti.End
		durationSec = ti.Duration
	}
	if startStr == "" {
		return time.Time{}, time.Time{}, false
	}

	start, err := ParseTimestamp(startStr)
	if err != nil {
		logging.Warn().Str("value", startStr).Err(err).Msg("Could not parse activity start time")
		return time.Time{}, time.Time{}, false
	}

	if endStr != "" {
		if parsed, err := ParseTimestamp(endStr); err == nil && parsed.After(start) {
			return start, parsed, true
		}
	}
	if durationSec > 0 {
		return start, start.Add(time.Duration(durationSec * float64(time.Second))), true
	}
	return start, start.Add(defaultActivitySpan), true
}
