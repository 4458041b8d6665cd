// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/manicsync/manicsync/internal/config"
	"github.com/manicsync/manicsync/internal/database"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/sync"
)

type fakeRunner struct {
	lastOpts sync.PassOptions
	result   *models.SyncResult
}

func (f *fakeRunner) Run(_ context.Context, opts sync.PassOptions) *models.SyncResult {
	f.lastOpts = opts
	if f.result != nil {
		r := *f.result
		r.UserID = opts.UserID
		return &r
	}
	return &models.SyncResult{UserID: opts.UserID, Status: models.SyncSuccess}
}

// fakeProfiles backs profile handlers with the real database but stubs
// out the remote credential exchange.
type fakeProfiles struct {
	db      *database.DB
	valid   bool
	authErr error
}

func (f *fakeProfiles) EnsureProfile(ctx context.Context, userID string, scheme models.AuthScheme, identity, _ string) (*models.CredentialProfile, error) {
	return f.db.EnsureProfile(ctx, userID, scheme, identity)
}

func (f *fakeProfiles) DeleteProfile(ctx context.Context, userID string) error {
	return f.db.DeleteProfile(ctx, userID)
}

func (f *fakeProfiles) Authenticate(context.Context, string) error { return f.authErr }

func (f *fakeProfiles) IsValid(context.Context, string) bool { return f.valid }

func (f *fakeProfiles) Revoke(ctx context.Context, userID string) error {
	return f.db.ResetProfileAuth(ctx, userID)
}

type testServer struct {
	srv      *httptest.Server
	db       *database.DB
	runner   *fakeRunner
	profiles *fakeProfiles
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	runner := &fakeRunner{}
	profiles := &fakeProfiles{db: db, valid: true}
	cfg := &config.Config{
		API: config.APIConfig{DefaultPageSize: 50, MaxPageSize: 200},
	}

	h := NewHandler(db, runner, profiles, cfg)
	srv := httptest.NewServer(NewRouter(h, NewMiddleware(nil)))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, db: db, runner: runner, profiles: profiles}
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func seedTimeline(t *testing.T, db *database.DB, userID, key string, selected bool) *models.Timeline {
	t.Helper()
	tl := &models.Timeline{TimelineKey: key, Name: key, Selected: selected}
	pass := db.BeginSyncPass(userID)
	if err := pass.RunStage(context.Background(), "timelines", func(st *database.Stage) error {
		return st.InsertTimeline(context.Background(), tl)
	}); err != nil {
		t.Fatalf("seed timeline %s: %v", key, err)
	}
	return tl
}

func seedActivity(t *testing.T, db *database.DB, userID string, timelineID int64, entityID, title, tags string, start time.Time) {
	t.Helper()
	end := start.Add(30 * time.Minute)
	pass := db.BeginSyncPass(userID)
	if err := pass.RunStage(context.Background(), "activities", func(st *database.Stage) error {
		return st.UpsertActivity(context.Background(), &models.Activity{
			TimelineID: timelineID,
			EntityID:   entityID,
			Title:      title,
			Tags:       tags,
			StartTime:  &start,
			EndTime:    &end,
			Duration:   models.ComputeDuration(&start, &end),
		})
	}); err != nil {
		t.Fatalf("seed activity %s: %v", entityID, err)
	}
}

func seedTagCombination(t *testing.T, db *database.DB, userID, entityID, name, tags string) {
	t.Helper()
	pass := db.BeginSyncPass(userID)
	if err := pass.RunStage(context.Background(), "tags", func(st *database.Stage) error {
		return st.UpsertTagCombination(context.Background(), &models.TagCombination{
			EntityID: entityID,
			Name:     name,
			Tags:     tags,
		})
	}); err != nil {
		t.Fatalf("seed tag combination %s: %v", entityID, err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		status, env := ts.do(t, http.MethodGet, path, nil)
		if status != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, status)
		}
		if env.Status != "success" {
			t.Errorf("GET %s envelope status = %q", path, env.Status)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestListActivities(t *testing.T) {
	ts := newTestServer(t)
	tl := seedTimeline(t, ts.db, "u1", "tk1", true)

	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	seedActivity(t, ts.db, "u1", tl.ID, "a1", "Chrome - Mail", "Email", base)
	seedActivity(t, ts.db, "u1", tl.ID, "a2", "Code - main.go", "Development", base.Add(time.Hour))
	seedActivity(t, ts.db, "u1", tl.ID, "a3", "Slack - general", "", base.Add(2*time.Hour))

	status, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/activities", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var page struct {
		Items []models.Activity `json:"items"`
		Total int64             `json:"total"`
		Limit int               `json:"limit"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 3 {
		t.Errorf("total = %d, items = %d, want 3 and 3", page.Total, len(page.Items))
	}
	if page.Limit != 50 {
		t.Errorf("default limit = %d, want 50", page.Limit)
	}

	status, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/activities?tag=Email", nil)
	if status != http.StatusOK {
		t.Fatalf("tag filter status = %d, want 200", status)
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode filtered page: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("tag filter total = %d, want 1", page.Total)
	}

	// Requested limit above the maximum gets clamped.
	status, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/activities?limit=9999", nil)
	if status != http.StatusOK {
		t.Fatalf("clamp status = %d, want 200", status)
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode clamped page: %v", err)
	}
	if page.Limit != 200 {
		t.Errorf("clamped limit = %d, want 200", page.Limit)
	}

	status, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/activities?from=not-a-time", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad from status = %d, want 400", status)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("bad from error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

func TestListActivitiesTimeWindow(t *testing.T) {
	ts := newTestServer(t)
	tl := seedTimeline(t, ts.db, "u1", "tk1", true)

	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	seedActivity(t, ts.db, "u1", tl.ID, "a1", "early", "", base)
	seedActivity(t, ts.db, "u1", tl.ID, "a2", "late", "", base.Add(4*time.Hour))

	from := base.Add(2 * time.Hour).Format(time.RFC3339)
	status, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/activities?from="+from, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var page struct {
		Items []models.Activity `json:"items"`
		Total int64             `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Title != "late" {
		t.Errorf("window result = %+v, want only the later activity", page.Items)
	}
}

func TestListTimelines(t *testing.T) {
	ts := newTestServer(t)
	seedTimeline(t, ts.db, "u1", "tk1", true)
	seedTimeline(t, ts.db, "u1", "tk2", false)

	status, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/timelines", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var timelines []models.Timeline
	if err := json.Unmarshal(env.Data, &timelines); err != nil {
		t.Fatalf("decode timelines: %v", err)
	}
	if len(timelines) != 2 {
		t.Errorf("len(timelines) = %d, want 2", len(timelines))
	}

	status, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/timelines?selected=true", nil)
	if status != http.StatusOK {
		t.Fatalf("selected status = %d, want 200", status)
	}
	if err := json.Unmarshal(env.Data, &timelines); err != nil {
		t.Fatalf("decode selected timelines: %v", err)
	}
	if len(timelines) != 1 || timelines[0].TimelineKey != "tk1" {
		t.Errorf("selected timelines = %+v, want only tk1", timelines)
	}
}

func TestSetTimelineSelection(t *testing.T) {
	ts := newTestServer(t)
	tl := seedTimeline(t, ts.db, "u1", "tk1", true)

	path := fmt.Sprintf("/api/v1/users/u1/timelines/%d/selection", tl.ID)
	status, env := ts.do(t, http.MethodPut, path, timelineSelectionRequest{Selected: false})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var updated models.Timeline
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if updated.Selected {
		t.Error("timeline still selected after deselection")
	}

	status, _ = ts.do(t, http.MethodPut, "/api/v1/users/u1/timelines/9999/selection",
		timelineSelectionRequest{Selected: true})
	if status != http.StatusNotFound {
		t.Errorf("unknown timeline status = %d, want 404", status)
	}

	status, _ = ts.do(t, http.MethodPut, "/api/v1/users/u1/timelines/abc/selection",
		timelineSelectionRequest{Selected: true})
	if status != http.StatusBadRequest {
		t.Errorf("malformed timeline ID status = %d, want 400", status)
	}
}

func TestTagCombinations(t *testing.T) {
	ts := newTestServer(t)
	seedTagCombination(t, ts.db, "u1", "tc1", "Email work", "Email,Work")
	seedTagCombination(t, ts.db, "u1", "tc2", "Meetings", "Meetings")

	status, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/tag-combinations", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d, want 200", status)
	}
	var combos []models.TagCombination
	if err := json.Unmarshal(env.Data, &combos); err != nil {
		t.Fatalf("decode combinations: %v", err)
	}
	if len(combos) != 2 {
		t.Errorf("len(combos) = %d, want 2", len(combos))
	}

	status, env = ts.do(t, http.MethodGet,
		"/api/v1/users/u1/tag-combinations/match?tags=Email,Work,Extra", nil)
	if status != http.StatusOK {
		t.Fatalf("match status = %d, want 200", status)
	}
	if err := json.Unmarshal(env.Data, &combos); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(combos) != 1 || combos[0].Name != "Email work" {
		t.Errorf("matches = %+v, want only Email work", combos)
	}

	status, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/tag-combinations/match", nil)
	if status != http.StatusBadRequest {
		t.Errorf("missing tags status = %d, want 400", status)
	}
}

func TestTriggerSync(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.result = &models.SyncResult{
		Status:     models.SyncSuccess,
		Timelines:  2,
		Activities: 5,
	}

	start := "2024-03-01T00:00:00Z"
	status, env := ts.do(t, http.MethodPost, "/api/v1/users/u1/sync",
		syncRequest{Start: start, AllTags: true})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var result models.SyncResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Activities != 5 {
		t.Errorf("result activities = %d, want 5", result.Activities)
	}

	if ts.runner.lastOpts.UserID != "u1" || !ts.runner.lastOpts.AllTags {
		t.Errorf("runner opts = %+v, want u1 with all tags", ts.runner.lastOpts)
	}
	if ts.runner.lastOpts.Start == nil || !ts.runner.lastOpts.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("runner start = %v, want 2024-03-01T00:00:00Z", ts.runner.lastOpts.Start)
	}
	if ts.runner.lastOpts.Scheduled {
		t.Error("manual trigger must not be marked scheduled")
	}
}

func TestTriggerSyncAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.result = &models.SyncResult{Status: models.SyncAuthRequired}

	status, env := ts.do(t, http.MethodPost, "/api/v1/users/u1/sync", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if env.Error == nil || env.Error.Code != "SYNC_AUTH_REQUIRED" {
		t.Errorf("error = %+v, want SYNC_AUTH_REQUIRED", env.Error)
	}
	// The pass result still rides along for diagnostics.
	var result models.SyncResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Status != models.SyncAuthRequired {
		t.Errorf("result status = %q, want auth_required", result.Status)
	}
}

func TestTriggerSyncRejectsBadStart(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, http.MethodPost, "/api/v1/users/u1/sync",
		map[string]string{"start": "yesterday"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

func TestProfileLifecycle(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, http.MethodPut, "/api/v1/users/u1/profile",
		enrollRequest{Scheme: "bearer", Identity: "client-1", Secret: "s3cret"})
	if status != http.StatusOK {
		t.Fatalf("enroll status = %d, want 200", status)
	}

	status, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/profile", nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d, want 200", status)
	}
	var got profileStatus
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if got.UserID != "u1" || got.AuthScheme != models.AuthBearer {
		t.Errorf("profile = %+v, want u1 bearer", got.CredentialProfile)
	}
	if !got.Authenticated {
		t.Error("profile not reported authenticated")
	}

	status, env = ts.do(t, http.MethodPatch, "/api/v1/users/u1/profile/options",
		profileOptionsRequest{AutoReauth: false, SyncNewTimelines: false})
	if status != http.StatusOK {
		t.Fatalf("options status = %d, want 200", status)
	}
	var updated models.CredentialProfile
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode updated profile: %v", err)
	}
	if updated.AutoReauth || updated.SyncNewTimelines {
		t.Errorf("options = %+v, want both disabled", updated)
	}

	status, _ = ts.do(t, http.MethodPost, "/api/v1/users/u1/profile/revoke", nil)
	if status != http.StatusOK {
		t.Fatalf("revoke status = %d, want 200", status)
	}

	status, _ = ts.do(t, http.MethodDelete, "/api/v1/users/u1/profile", nil)
	if status != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", status)
	}

	status, _ = ts.do(t, http.MethodGet, "/api/v1/users/u1/profile", nil)
	if status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", status)
	}
}

func TestEnrollValidation(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, http.MethodPut, "/api/v1/users/u1/profile",
		enrollRequest{Scheme: "kerberos", Identity: "client-1"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

func TestAuthenticateProfileErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	ts.profiles.authErr = sync.ErrNotConfigured
	status, _ := ts.do(t, http.MethodPost, "/api/v1/users/u1/profile/authenticate", nil)
	if status != http.StatusNotFound {
		t.Errorf("not configured status = %d, want 404", status)
	}

	ts.profiles.authErr = sync.ErrAuthRequired
	status, _ = ts.do(t, http.MethodPost, "/api/v1/users/u1/profile/authenticate", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("rejected status = %d, want 401", status)
	}

	ts.profiles.authErr = nil
	status, env := ts.do(t, http.MethodPost, "/api/v1/users/u1/profile/authenticate", nil)
	if status != http.StatusOK {
		t.Errorf("success status = %d, want 200", status)
	}
	if env.Status != "success" {
		t.Errorf("envelope status = %q, want success", env.Status)
	}
}
