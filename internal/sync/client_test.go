// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manicsync/manicsync/internal/config"
	"github.com/manicsync/manicsync/internal/models"
)

func testClientConfig(serverURL string) (config.ManicTimeConfig, config.SyncConfig) {
	return config.ManicTimeConfig{
			URL:       serverURL,
			Timeout:   5 * time.Second,
			VerifyTLS: true,
		}, config.SyncConfig{
			BreakerThreshold: 5,
			BreakerCooldown:  time.Minute,
		}
}

func newBearerClient(t *testing.T, serverURL string) *HTTPClient {
	t.Helper()
	mtCfg, syncCfg := testClientConfig(serverURL)
	c := NewClient(mtCfg, syncCfg, Credentials{
		Scheme: models.AuthBearer,
		Token:  "tok-xyz",
	})
	c.retryBaseDelay = time.Millisecond
	return c
}

func TestClientBearerAuthHeader(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"timelines":[]}`))
	}))
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	if _, err := c.GetTimelines(context.Background()); err != nil {
		t.Fatalf("GetTimelines() failed: %v", err)
	}
	if auth, _ := gotAuth.Load().(string); auth != "Bearer tok-xyz" {
		t.Errorf("Authorization = %q, want Bearer tok-xyz", auth)
	}
}

func TestClientRetriesOn429(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"timelines":[]}`))
	}))
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	if _, err := c.GetTimelines(context.Background()); err != nil {
		t.Fatalf("GetTimelines() failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	c.maxRetries = 1

	_, err := c.GetTimelines(context.Background())
	if err == nil {
		t.Fatal("GetTimelines() succeeded against a permanently rate-limited server")
	}
	if !IsRemoteError(err) {
		t.Errorf("error = %v, want RemoteError", err)
	}
}

func TestClientMapsAuthStatuses(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := newBearerClient(t, srv.URL)
		_, err := c.GetTimelines(context.Background())
		srv.Close()

		if !errors.Is(err, ErrAuthRequired) {
			t.Errorf("status %d: error = %v, want ErrAuthRequired", status, err)
		}
	}
}

func TestClientMapsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	_, err := c.GetTimelines(context.Background())
	if !IsRemoteError(err) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	var re *RemoteError
	if errors.As(err, &re) && re.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", re.StatusCode)
	}
}

func TestGetTagCombinationsFallsBackToLegacy(t *testing.T) {
	var legacyAccept atomic.Value
	var getAllSeen atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/ui-api/analytics/timelines/tagEditorTags", func(w http.ResponseWriter, r *http.Request) {
		// Modern endpoint responds but holds nothing.
		_, _ = w.Write([]byte(`{"tagCombinations":[]}`))
	})
	mux.HandleFunc("/api/tagcombinationlist", func(w http.ResponseWriter, r *http.Request) {
		legacyAccept.Store(r.Header.Get("Accept"))
		if r.URL.Query().Get("getAll") == "true" {
			getAllSeen.Store(true)
			// Widened query rejected for this credential.
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"1","name":"Work"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	body, err := c.GetTagCombinations(context.Background(), true)
	if err != nil {
		t.Fatalf("GetTagCombinations() failed: %v", err)
	}
	if !getAllSeen.Load() {
		t.Error("widened legacy query never attempted")
	}
	if accept, _ := legacyAccept.Load().(string); accept != "application/vnd.manictime.v3+json" {
		t.Errorf("legacy Accept = %q", accept)
	}

	tags, err := NormalizeTagCombinations(body)
	if err != nil {
		t.Fatalf("NormalizeTagCombinations() failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "Work" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestGetTagCombinationsPrefersModern(t *testing.T) {
	var legacyCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/ui-api/analytics/timelines/tagEditorTags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tagCombinations":[{"tag":{"key":"t1","tagCombination":"Work"}}]}`))
	})
	mux.HandleFunc("/api/tagcombinationlist", func(w http.ResponseWriter, r *http.Request) {
		legacyCalls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	if _, err := c.GetTagCombinations(context.Background(), false); err != nil {
		t.Fatalf("GetTagCombinations() failed: %v", err)
	}
	if legacyCalls.Load() != 0 {
		t.Errorf("legacy endpoint called %d times despite modern data", legacyCalls.Load())
	}
}

func TestGetActivitiesQueryParams(t *testing.T) {
	var gotPath, gotFrom, gotTo atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		gotFrom.Store(r.URL.Query().Get("fromTime"))
		gotTo.Store(r.URL.Query().Get("toTime"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	if _, err := c.GetActivities(context.Background(), "k1", start, end, ""); err != nil {
		t.Fatalf("GetActivities() failed: %v", err)
	}

	if p, _ := gotPath.Load().(string); p != "/api/timelines/k1/activities" {
		t.Errorf("path = %q", p)
	}
	if f, _ := gotFrom.Load().(string); f != "2024-03-15T00:00:00" {
		t.Errorf("fromTime = %q", f)
	}
	if to, _ := gotTo.Load().(string); to != "2024-03-16T00:00:00" {
		t.Errorf("toTime = %q", to)
	}
}

func TestGetActivitiesUsesLinkURL(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newBearerClient(t, srv.URL)
	linkURL := srv.URL + "/custom/feed/k1"
	if _, err := c.GetActivities(context.Background(), "k1", time.Now(), time.Now().Add(time.Hour), linkURL); err != nil {
		t.Fatalf("GetActivities() failed: %v", err)
	}
	if p, _ := gotPath.Load().(string); p != "/custom/feed/k1" {
		t.Errorf("path = %q, want the advertised link path", p)
	}
}

func TestCachedClientMemoizesGets(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"timelines":[]}`))
	}))
	defer srv.Close()

	mtCfg, syncCfg := testClientConfig(srv.URL)
	c := NewCachedClient(mtCfg, syncCfg, Credentials{Scheme: models.AuthBearer, Token: "tok"})

	for i := 0; i < 3; i++ {
		if _, err := c.GetTimelines(context.Background()); err != nil {
			t.Fatalf("GetTimelines() #%d failed: %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream requests = %d, want 1", got)
	}

	// A fresh client does not share the cache.
	c2 := NewCachedClient(mtCfg, syncCfg, Credentials{Scheme: models.AuthBearer, Token: "tok"})
	if _, err := c2.GetTimelines(context.Background()); err != nil {
		t.Fatalf("GetTimelines() on fresh client failed: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream requests = %d, want 2", got)
	}
}
