// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/go-ntlmssp"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/manicsync/manicsync/internal/config"
	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/metrics"
	"github.com/manicsync/manicsync/internal/models"
	"github.com/manicsync/manicsync/internal/models/manictime"
)

// maxErrorBodySize limits how much of a response body is read for error
// reporting, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// acceptJSON is the default Accept header; the legacy tag endpoint
// overrides it with a versioned vendor media type.
const (
	acceptJSON      = "application/json"
	acceptLegacyTag = "application/vnd.manictime.v3+json"
)

// readBodyForError reads at most maxErrorBodySize of r for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Credentials carries one user's remote credentials for the duration of
// a client's lifetime. For bearer, Identity is the OAuth client ID and
// Secret the client secret; Token holds an already-issued access token.
// For NTLM, Identity is the username and Secret the password; Token is
// unused.
type Credentials struct {
	Scheme   models.AuthScheme
	Identity string
	Secret   string
	Token    string
}

// Client is the ManicTime Server API surface the sync engine consumes.
//
// Methods return the raw response body; decoding is the normalizer's
// job because the same endpoint returns structurally different JSON
// across server versions. All methods are safe for concurrent use.
type Client interface {
	// Request performs a GET against an absolute URL with optional
	// extra headers. endpoint is a short label used for metrics only.
	Request(ctx context.Context, endpoint, reqURL string, headers map[string]string) ([]byte, error)
	// ExchangeToken performs the OAuth password-grant token request
	// using the client's bearer credentials.
	ExchangeToken(ctx context.Context) (*manictime.TokenResponse, error)
	// GetTimelines fetches the timeline list for the credential owner.
	GetTimelines(ctx context.Context) ([]byte, error)
	// GetTagCombinations fetches tag combinations, preferring the
	// modern tag editor endpoint and falling back to the legacy list.
	// allUsers widens the legacy fallback to every user's tags, which
	// the server only honors for manager credentials.
	GetTagCombinations(ctx context.Context, allUsers bool) ([]byte, error)
	// GetActivities fetches a timeline's activities for a window.
	// activitiesURL, when set, is the link-capability URL discovered
	// for the timeline; otherwise a default path is derived.
	GetActivities(ctx context.Context, timelineKey string, start, end time.Time, activitiesURL string) ([]byte, error)
}

// HTTPClient talks to a ManicTime Server over HTTP with rate limiting,
// circuit breaking, and automatic retry on HTTP 429.
type HTTPClient struct {
	baseURL        string
	creds          Credentials
	httpc          *http.Client
	limiter        *rate.Limiter
	breaker        *requestBreaker
	cache          *requestCache // nil = no memoization
	maxRetries     int
	retryBaseDelay time.Duration
}

var _ Client = (*HTTPClient)(nil)

// NewClient builds a client for one user's credentials. NTLM
// negotiation is handled by the transport; bearer tokens are attached
// per request.
func NewClient(cfg config.ManicTimeConfig, syncCfg config.SyncConfig, creds Credentials) *HTTPClient {
	transport := http.DefaultTransport
	if !cfg.VerifyTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // operator opt-in for self-signed servers
		}
	}
	if creds.Scheme == models.AuthNTLM {
		transport = ntlmssp.Negotiator{RoundTripper: transport}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		creds:   creds,
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter:        limiter,
		breaker:        newRequestBreaker("manictime", syncCfg.BreakerThreshold, syncCfg.BreakerCooldown),
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// NewCachedClient builds a client that memoizes successful GET bodies.
// One cached client serves exactly one sync pass; each pass gets a
// fresh instance so no response outlives the pass that fetched it.
func NewCachedClient(cfg config.ManicTimeConfig, syncCfg config.SyncConfig, creds Credentials) *HTTPClient {
	c := NewClient(cfg, syncCfg, creds)
	c.cache = newRequestCache()
	return c
}

// applyAuth attaches the credential scheme's headers. NTLM is handled
// by the negotiating transport and only needs basic credentials.
func (c *HTTPClient) applyAuth(req *http.Request) {
	switch c.creds.Scheme {
	case models.AuthNTLM:
		req.SetBasicAuth(c.creds.Identity, c.creds.Secret)
	default:
		if c.creds.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.creds.Token)
		}
	}
}

// doWithRateLimit performs req with exponential backoff on HTTP 429
// (1s, 2s, 4s, 8s, 16s), honoring a Retry-After header when present.
func (c *HTTPClient) doWithRateLimit(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// get performs an authenticated GET and returns the body, mapping
// 401/403 to AuthError and every other failure to RemoteError.
func (c *HTTPClient) get(ctx context.Context, endpoint, reqURL string, headers map[string]string) ([]byte, error) {
	var key string
	if c.cache != nil {
		key = cacheKey(reqURL, headers)
		if body, ok := c.cache.get(key); ok {
			return body, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	body, status, err := c.breaker.execute(func() ([]byte, int, error) {
		resp, err := c.doWithRateLimit(ctx, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", acceptJSON)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			c.applyAuth(req)
			return req, nil
		})
		if err != nil {
			return nil, 0, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return readBodyForError(resp.Body), resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, resp.StatusCode, nil
	})
	metrics.RecordRemoteRequest(endpoint, strconv.Itoa(status), time.Since(start))

	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, &AuthError{Op: endpoint, Err: err}
		}
		return nil, &RemoteError{Endpoint: endpoint, StatusCode: status, Err: err}
	}
	if c.cache != nil {
		c.cache.put(key, body)
	}
	return body, nil
}

// Request implements Client.
func (c *HTTPClient) Request(ctx context.Context, endpoint, reqURL string, headers map[string]string) ([]byte, error) {
	return c.get(ctx, endpoint, reqURL, headers)
}

// ExchangeToken implements Client. The server issues opaque bearer
// tokens through an OAuth password grant where the client ID acts as
// the username and the client secret as the password.
func (c *HTTPClient) ExchangeToken(ctx context.Context) (*manictime.TokenResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.creds.Identity)
	form.Set("password", c.creds.Secret)
	tokenURL := c.baseURL + "/api/token"

	start := time.Now()
	body, status, err := c.breaker.execute(func() ([]byte, int, error) {
		resp, err := c.doWithRateLimit(ctx, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Accept", acceptJSON)
			return req, nil
		})
		if err != nil {
			return nil, 0, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return readBodyForError(resp.Body), resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, resp.StatusCode, nil
	})
	metrics.RecordRemoteRequest("token", strconv.Itoa(status), time.Since(start))

	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest {
			return nil, &AuthError{Op: "token", Err: err}
		}
		return nil, &RemoteError{Endpoint: "token", StatusCode: status, Err: err}
	}

	var token manictime.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &RemoteError{Endpoint: "token", Err: fmt.Errorf("failed to decode token response: %w", err)}
	}
	if token.BearerToken() == "" {
		return nil, &AuthError{Op: "token", Err: fmt.Errorf("no bearer token in response")}
	}
	return &token, nil
}

// GetTimelines implements Client.
func (c *HTTPClient) GetTimelines(ctx context.Context) ([]byte, error) {
	return c.get(ctx, "timelines", c.baseURL+"/api/timelines", nil)
}

// GetTagCombinations implements Client. The modern tag editor endpoint
// is tried first; an empty or failing result falls back to the legacy
// combination list, widened to all users for manager credentials and
// retried own-tags-only if the widened form is rejected.
func (c *HTTPClient) GetTagCombinations(ctx context.Context, allUsers bool) ([]byte, error) {
	modernURL := c.baseURL + "/ui-api/analytics/timelines/tagEditorTags"
	body, err := c.get(ctx, "tags", modernURL, nil)
	if err == nil && !emptyTagPayload(body) {
		return body, nil
	}
	if err != nil {
		logging.Warn().Err(err).Msg("Tag editor endpoint failed, falling back to legacy tag list")
	} else {
		logging.Debug().Msg("Tag editor endpoint returned no combinations, falling back to legacy tag list")
	}

	legacyHeaders := map[string]string{"Accept": acceptLegacyTag}
	if allUsers {
		body, err = c.get(ctx, "tags", c.baseURL+"/api/tagcombinationlist?getAll=true", legacyHeaders)
		if err == nil {
			return body, nil
		}
		logging.Warn().Err(err).Msg("Legacy tag list with getAll rejected, retrying own tags only")
	}
	return c.get(ctx, "tags", c.baseURL+"/api/tagcombinationlist", legacyHeaders)
}

// emptyTagPayload reports whether body decodes to a tag response with
// no combinations under any of the container keys.
func emptyTagPayload(body []byte) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return true
	}
	for _, key := range []string{"tagCombinations", "tags", "combinations"} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return false
		}
	}
	return true
}

// GetActivities implements Client.
func (c *HTTPClient) GetActivities(ctx context.Context, timelineKey string, start, end time.Time, activitiesURL string) ([]byte, error) {
	base := activitiesURL
	if base == "" {
		base = fmt.Sprintf("%s/api/timelines/%s/activities", c.baseURL, url.PathEscape(timelineKey))
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, &RemoteError{Endpoint: "activities", Err: fmt.Errorf("invalid activities URL %q: %w", base, err)}
	}
	q := u.Query()
	q.Set("fromTime", FormatQueryTime(start))
	q.Set("toTime", FormatQueryTime(end))
	u.RawQuery = q.Encode()

	return c.get(ctx, "activities", u.String(), nil)
}
