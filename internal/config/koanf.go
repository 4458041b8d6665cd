// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/manicsync/config.yaml",
	"/etc/manicsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		ManicTime: ManicTimeConfig{
			URL:       "",
			Timeout:   30 * time.Second,
			VerifyTLS: true,
			RateLimit: 10,
			RateBurst: 20,
		},
		Auth: AuthConfig{
			BearerTokenTTL: 24 * time.Hour,
			NTLMTokenTTL:   7 * 24 * time.Hour,
			AutoReauth:     true,
			SweepInterval:  15 * time.Minute,
		},
		Sync: SyncConfig{
			Interval:         time.Hour,
			Overlap:          time.Hour,
			MaxWindow:        7 * 24 * time.Hour,
			InitialWindow:    7 * 24 * time.Hour,
			BatchSize:        100,
			SyncNewTimelines: true,
			BreakerThreshold: 5,
			BreakerCooldown:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/manicsync.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Vault: VaultConfig{
			Path:          "/data/vault",
			EncryptionKey: "",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8395,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources: defaults, then an optional
// YAML file, then environment variables. The result is validated before it
// is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists paths parsed as comma-separated slices when they
// arrive as strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, which keeps unrelated
// environment variables out of the config.
//
// Examples:
//   - MANICTIME_URL -> manictime.url
//   - SYNC_BATCH_SIZE -> sync.batch_size
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// ManicTime server mappings
		"manictime_url":        "manictime.url",
		"manictime_timeout":    "manictime.timeout",
		"manictime_verify_tls": "manictime.verify_tls",
		"manictime_rate_limit": "manictime.rate_limit",
		"manictime_rate_burst": "manictime.rate_burst",

		// Auth mappings
		"auth_bearer_token_ttl": "auth.bearer_token_ttl",
		"auth_ntlm_token_ttl":   "auth.ntlm_token_ttl",
		"auth_auto_reauth":      "auth.auto_reauth",
		"auth_sweep_interval":   "auth.sweep_interval",

		// Sync mappings
		"sync_interval":          "sync.interval",
		"sync_overlap":           "sync.overlap",
		"sync_max_window":        "sync.max_window",
		"sync_initial_window":    "sync.initial_window",
		"sync_batch_size":        "sync.batch_size",
		"sync_new_timelines":     "sync.sync_new_timelines",
		"sync_breaker_threshold": "sync.breaker_threshold",
		"sync_breaker_cooldown":  "sync.breaker_cooldown",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Vault mappings
		"vault_path":           "vault.path",
		"vault_encryption_key": "vault.encryption_key",

		// Server mappings
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
