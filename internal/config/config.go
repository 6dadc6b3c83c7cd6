// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Provider ProviderConfig `koanf:"provider"`
	Sync     SyncConfig     `koanf:"sync"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	NATS     NATSConfig     `koanf:"nats"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ProviderConfig configures the link analytics provider API.
type ProviderConfig struct {
	BaseURL        string   `koanf:"base_url"`
	AccessToken    string   `koanf:"access_token"`
	OrganizationID string   `koanf:"organization_id"`
	ShortDomains   []string `koanf:"short_domains"`

	// Timeout bounds a single HTTP request to the provider.
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond and Burst shape the client-side rate limiter shared by
	// all sync workers.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	CircuitBreaker bool `koanf:"circuit_breaker"`
}

// SyncConfig controls the sync orchestrator and its scheduled trigger.
type SyncConfig struct {
	ScheduleEnabled bool `koanf:"schedule_enabled"`

	// Schedule is a 5-field cron expression evaluated in UTC.
	Schedule string `koanf:"schedule"`

	Concurrency   int           `koanf:"concurrency"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	MaxRetryDelay time.Duration `koanf:"max_retry_delay"`
	LinkTimeout   time.Duration `koanf:"link_timeout"`
	WindowDays    int           `koanf:"window_days"`

	// DistributionDays is how many of the most recent days with clicks get
	// their country and referrer distributions fetched on each sync. Older
	// days keep the distributions stored when they were recent.
	DistributionDays int `koanf:"distribution_days"`

	// StaleRunAfter is the age after which a run still marked running is
	// considered abandoned and closed as failed. Runs owned by this process
	// are never closed; set it above the longest expected run so a run held
	// by another instance is not recovered while it is still working.
	StaleRunAfter time.Duration `koanf:"stale_run_after"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path         string        `koanf:"path"`
	MaxMemory    string        `koanf:"max_memory"`
	Threads      int           `koanf:"threads"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// CacheConfig configures the long-URL resolution cache.
// An empty Path keeps the cache in memory.
type CacheConfig struct {
	Path string        `koanf:"path"`
	TTL  time.Duration `koanf:"ttl"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// SecurityConfig configures authentication, authorization and rate limiting.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTIssuer         string        `koanf:"jwt_issuer"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// NATSConfig configures event publishing.
// When disabled, events are delivered to an in-process channel only.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
