// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for all optional settings
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	ManicTime ManicTimeConfig `koanf:"manictime"`
	Auth      AuthConfig      `koanf:"auth"`
	Sync      SyncConfig      `koanf:"sync"`
	Database  DatabaseConfig  `koanf:"database"`
	Vault     VaultConfig     `koanf:"vault"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ManicTimeConfig holds the connection settings for the ManicTime Server.
//
// Environment Variables:
//   - MANICTIME_URL: server base URL (e.g. https://manictime.example.com)
//   - MANICTIME_TIMEOUT: HTTP timeout for API requests
//   - MANICTIME_VERIFY_TLS: verify the server certificate (default: true)
type ManicTimeConfig struct {
	URL       string        `koanf:"url"`
	Timeout   time.Duration `koanf:"timeout"`
	VerifyTLS bool          `koanf:"verify_tls"`
	// RateLimit caps outbound requests per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	// RateBurst is the burst allowance when rate limiting is enabled.
	RateBurst int `koanf:"rate_burst"`
}

// AuthConfig controls credential and token lifecycle handling.
type AuthConfig struct {
	// BearerTokenTTL is how long a bearer token obtained from the token
	// endpoint is considered valid.
	BearerTokenTTL time.Duration `koanf:"bearer_token_ttl"`
	// NTLMTokenTTL is how long stored NTLM credentials are trusted before
	// re-verification.
	NTLMTokenTTL time.Duration `koanf:"ntlm_token_ttl"`
	// AutoReauth re-authenticates expired profiles automatically from
	// vault-stored secrets.
	AutoReauth bool `koanf:"auto_reauth"`
	// SweepInterval is how often expired tokens are swept and refreshed.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// SyncConfig holds the synchronization pipeline settings.
type SyncConfig struct {
	// Interval between scheduled sync passes.
	Interval time.Duration `koanf:"interval"`
	// Overlap is subtracted from the last sync point so edits made near
	// the boundary are re-fetched.
	Overlap time.Duration `koanf:"overlap"`
	// MaxWindow caps the activity window of a single pass.
	MaxWindow time.Duration `koanf:"max_window"`
	// InitialWindow is the lookback used for a profile's first pass.
	InitialWindow time.Duration `koanf:"initial_window"`
	// BatchSize is the number of activity records committed per savepoint.
	BatchSize int `koanf:"batch_size"`
	// SyncNewTimelines auto-selects timelines discovered after setup.
	SyncNewTimelines bool `koanf:"sync_new_timelines"`
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker in front of the remote API.
	BreakerThreshold int `koanf:"breaker_threshold"`
	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads 0 means use runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// VaultConfig holds the encrypted credential store settings.
type VaultConfig struct {
	Path string `koanf:"path"`
	// EncryptionKey is the master key material for AES-256-GCM secret
	// encryption. Required; minimum 32 characters.
	EncryptionKey string `koanf:"encryption_key"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// APIConfig holds pagination limits for the read API.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for missing or malformed values.
func (c *Config) Validate() error {
	if c.ManicTime.URL == "" {
		return fmt.Errorf("manictime.url is required")
	}
	u, err := url.Parse(c.ManicTime.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("manictime.url %q is not a valid URL", c.ManicTime.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("manictime.url must use http or https, got %q", u.Scheme)
	}

	if c.Vault.EncryptionKey == "" {
		return fmt.Errorf("vault.encryption_key is required")
	}
	if len(c.Vault.EncryptionKey) < 32 {
		return fmt.Errorf("vault.encryption_key must be at least 32 characters")
	}
	if c.Vault.Path == "" {
		return fmt.Errorf("vault.path is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Sync.MaxWindow <= 0 {
		return fmt.Errorf("sync.max_window must be positive")
	}
	if c.Sync.Overlap < 0 {
		return fmt.Errorf("sync.overlap must not be negative")
	}
	if c.Sync.Overlap >= c.Sync.MaxWindow {
		return fmt.Errorf("sync.overlap must be smaller than sync.max_window")
	}

	if c.Auth.BearerTokenTTL <= 0 || c.Auth.NTLMTokenTTL <= 0 {
		return fmt.Errorf("auth token TTLs must be positive")
	}

	if c.API.DefaultPageSize < 1 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api page sizes invalid: default=%d max=%d",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

// BaseURL returns the ManicTime server URL without a trailing slash.
func (m ManicTimeConfig) BaseURL() string {
	return strings.TrimRight(m.URL, "/")
}
