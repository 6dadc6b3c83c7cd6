// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

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

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/linksync/config.yaml",
	"/etc/linksync/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:           "https://api-ssl.bitly.com",
			ShortDomains:      []string{"bit.ly"},
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			CircuitBreaker:    true,
		},
		Sync: SyncConfig{
			ScheduleEnabled:  true,
			Schedule:         "0 3 * * *", // daily, 03:00 UTC
			Concurrency:      4,
			RetryAttempts:    3,
			RetryDelay:       time.Second,
			MaxRetryDelay:    30 * time.Second,
			LinkTimeout:      20 * time.Second,
			WindowDays:       30,
			DistributionDays: 2,
			StaleRunAfter:    time.Hour,
		},
		Database: DatabaseConfig{
			Path:         "/data/linksync.duckdb",
			MaxMemory:    "512MB",
			Threads:      0, // 0 = runtime.NumCPU()
			QueryTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Path: "/data/resolve-cache",
			TTL:  24 * time.Hour,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTIssuer:       "linksync",
			TokenTTL:        24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats",
			MaxMemory:      64 << 20,
			MaxStore:       1 << 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration from defaults, the optional YAML file and
// the environment, in that order, then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
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

// sliceConfigPaths are split on commas when supplied as env strings.
var sliceConfigPaths = []string{
	"provider.short_domains",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
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
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"provider_base_url":        "provider.base_url",
	"provider_access_token":    "provider.access_token",
	"provider_organization_id": "provider.organization_id",
	"provider_short_domains":   "provider.short_domains",
	"provider_timeout":         "provider.timeout",
	"provider_rate_limit":      "provider.requests_per_second",
	"provider_burst":           "provider.burst",
	"provider_circuit_breaker": "provider.circuit_breaker",

	"sync_schedule_enabled":  "sync.schedule_enabled",
	"sync_schedule":          "sync.schedule",
	"sync_concurrency":       "sync.concurrency",
	"sync_retry_attempts":    "sync.retry_attempts",
	"sync_retry_delay":       "sync.retry_delay",
	"sync_max_retry_delay":   "sync.max_retry_delay",
	"sync_link_timeout":      "sync.link_timeout",
	"sync_window_days":       "sync.window_days",
	"sync_distribution_days": "sync.distribution_days",
	"sync_stale_run_after":   "sync.stale_run_after",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",
	"db_query_timeout":  "database.query_timeout",

	"cache_path": "cache.path",
	"cache_ttl":  "cache.ttl",

	"http_host":        "server.host",
	"http_port":        "server.port",
	"server_timeout":   "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"jwt_issuer":          "security.jwt_issuer",
	"token_ttl":           "security.token_ttl",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"nats_enabled":   "nats.enabled",
	"nats_url":       "nats.url",
	"nats_embedded":  "nats.embedded_server",
	"nats_store_dir": "nats.store_dir",
	"nats_max_mem":   "nats.max_memory",
	"nats_max_store": "nats.max_store",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unknown variables map to "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
