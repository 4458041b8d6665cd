// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"github.com/google/uuid"

	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/models"
)

// NormalizeTagCombinations converts either tag payload generation into
// canonical records. The modern tag editor wraps each combination in a
// nested "tag" object; the legacy list carries flat records. A record
// missing an identifier gets a generated one rather than being dropped,
// since tag combinations are matched purely by entity ID.
func NormalizeTagCombinations(raw []byte) ([]models.RemoteTagCombination, error) {
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, &RemoteError{Endpoint: "tags", Err: err}
	}

	records := resolveRecords(doc, containerOptions{
		keys:         []string{"tagCombinations", "tags", "combinations"},
		identityKeys: []string{"tagId", "id"},
	})

	out := make([]models.RemoteTagCombination, 0, len(records))
	for _, rec := range records {
		switch v := rec.(type) {
		case map[string]any:
			if tag, ok := asMap(v["tag"]); ok {
				if combo, ok := normalizeModernTag(tag); ok {
					out = append(out, combo)
				}
				continue
			}
			out = append(out, normalizeLegacyTag(v))
		case string:
			// Bare string tags show up in some legacy responses.
			if v != "" {
				out = append(out, models.RemoteTagCombination{
					EntityID: generatedTagID(),
					Name:     v,
					Tags:     []string{v},
				})
			}
		default:
			logging.Warn().Interface("record", rec).Msg("Skipping unexpected tag combination format")
		}
	}
	return out, nil
}

// normalizeModernTag handles the tag editor shape
// {tag:{key,tagCombination,color,isBillable}}.
func normalizeModernTag(tag map[string]any) (models.RemoteTagCombination, bool) {
	key := mapString(tag, "key")
	combination := mapString(tag, "tagCombination")
	if key == "" || combination == "" {
		return models.RemoteTagCombination{}, false
	}
	return models.RemoteTagCombination{
		EntityID: key,
		Name:     combination,
		Tags:     []string{combination},
		Color:    mapString(tag, "color"),
		Billable: mapBool(tag, "isBillable"),
	}, true
}

// normalizeLegacyTag handles the flat combination-list shape.
func normalizeLegacyTag(m map[string]any) models.RemoteTagCombination {
	entityID := mapString(m, "id", "tagId")
	if entityID == "" {
		entityID = generatedTagID()
		logging.Warn().Err(&DataQualityError{Kind: "tag_combination", Field: "entity ID", Detail: "generated " + entityID}).
			Msg("Tag combination missing ID, generated one")
	}

	name := mapString(m, "name")
	if name == "" {
		name = "Unnamed Tag"
	}

	return models.RemoteTagCombination{
		EntityID:    entityID,
		Name:        name,
		Tags:        mapStrings(m, "tags"),
		Description: mapString(m, "description"),
		Color:       mapString(m, "color"),
		Billable:    mapBool(m, "isBillable", "billable"),
	}
}

func generatedTagID() string {
	return "generated_" + uuid.NewString()
}
