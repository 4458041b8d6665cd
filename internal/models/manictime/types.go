// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package manictime holds raw wire types for ManicTime Server payloads.
//
// The server has shipped several generations of its API and the same
// endpoint can return structurally different JSON depending on version.
// Fields here are deliberately loose where the shape varies; the sync
// normalizer is responsible for turning these into canonical records.
package manictime

import "github.com/goccy/go-json"

// HomeResponse is the root document returned by GET /api. Its links list
// advertises which capabilities the server supports.
type HomeResponse struct {
	Links []Link `json:"links"`
}

// Link is a rel/href pair as it appears throughout the API.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// HrefFor returns the href of the first link with the given rel, or "".
func HrefFor(links []Link, rel string) string {
	for _, l := range links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

// TokenResponse is the body of POST /api/token.
type TokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// BearerToken returns whichever token field the server populated.
func (t *TokenResponse) BearerToken() string {
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

// Timeline and tag payloads are decoded as loose values rather than
// structs: key casing, nesting, and container keys vary enough between
// server versions that the sync normalizer resolves them dynamically.

// ActivitiesResponse is the body of a timeline activity feed.
type ActivitiesResponse struct {
	Entities   []ActivityEntity `json:"entities"`
	Activities []ActivityEntity `json:"activities"`
}

// Records returns whichever activity list the server populated.
func (r *ActivitiesResponse) Records() []ActivityEntity {
	if len(r.Entities) > 0 {
		return r.Entities
	}
	return r.Activities
}

// ActivityEntity is one activity record. Newer servers nest values under
// "values"; older ones inline them, so both levels carry the same fields.
type ActivityEntity struct {
	EntityID string         `json:"entityId"`
	ID       string         `json:"id"`
	Values   ActivityValues `json:"values"`
	ActivityValues
}

// Identity returns the best available entity identifier.
func (e *ActivityEntity) Identity() string {
	if e.EntityID != "" {
		return e.EntityID
	}
	return e.ID
}

// ActivityValues carries the activity payload fields.
type ActivityValues struct {
	Name         string         `json:"name"`
	Title        string         `json:"title"`
	Application  ApplicationDoc `json:"application"`
	Notes        string         `json:"notes"`
	TextData     string         `json:"textData"`
	Tags         []string       `json:"tags"`
	TimeInterval *TimeInterval  `json:"timeInterval"`
	Start        string         `json:"start"`
	End          string         `json:"end"`
}

// TimeInterval is the nested start/duration form of an activity span.
// Duration is in seconds.
type TimeInterval struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Duration float64 `json:"duration"`
}

// ApplicationDoc tolerates both a plain string and an object with a name.
type ApplicationDoc struct {
	Name string
}

// UnmarshalJSON accepts "app.exe" or {"name": "app.exe"}.
func (a *ApplicationDoc) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &a.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Name = obj.Name
	return nil
}
