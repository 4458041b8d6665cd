// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"sort"
	"strings"
	"sync"

	"github.com/manicsync/manicsync/internal/metrics"
)

// requestCache memoizes successful GET bodies for the duration of one
// sync pass. The tag endpoint in particular is consulted both by
// authentication verification and by the tag stage; without the cache
// the same URL is fetched twice per pass. There is no expiry: a cache
// never outlives its pass.
type requestCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newRequestCache() *requestCache {
	return &requestCache{entries: make(map[string][]byte)}
}

// cacheKey builds a key from the URL and the extra headers, which can
// change the response shape (the legacy tag endpoint is selected by
// media type).
func cacheKey(reqURL string, headers map[string]string) string {
	if len(headers) == 0 {
		return reqURL
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(reqURL)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(headers[k])
	}
	return b.String()
}

// get returns a cached body and whether it was present.
func (rc *requestCache) get(key string) ([]byte, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	body, ok := rc.entries[key]
	if ok {
		metrics.RemoteCacheHits.Inc()
	} else {
		metrics.RemoteCacheMisses.Inc()
	}
	return body, ok
}

func (rc *requestCache) put(key string, body []byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = body
}
