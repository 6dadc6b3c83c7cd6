// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/linksync/internal/scheduler"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvider() error {
	if err := checkURL("PROVIDER_BASE_URL", c.Provider.BaseURL, true, httpSchemes); err != nil {
		return err
	}
	if c.Provider.AccessToken == "" {
		return fmt.Errorf("PROVIDER_ACCESS_TOKEN is required")
	}
	if len(c.Provider.ShortDomains) == 0 {
		return fmt.Errorf("PROVIDER_SHORT_DOMAINS must list at least one short link domain")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.Provider.RequestsPerSecond <= 0 || c.Provider.Burst < 1 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must be positive and PROVIDER_BURST at least 1")
	}
	return nil
}

// Worker pool bounds; the provider rate limit makes larger pools pointless.
const (
	minSyncConcurrency = 1
	maxSyncConcurrency = 16
)

func (c *Config) validateSync() error {
	if c.Sync.ScheduleEnabled {
		if _, err := scheduler.ParseCron(c.Sync.Schedule); err != nil {
			return fmt.Errorf("SYNC_SCHEDULE is invalid: %w", err)
		}
	}
	if c.Sync.Concurrency < minSyncConcurrency || c.Sync.Concurrency > maxSyncConcurrency {
		return fmt.Errorf("SYNC_CONCURRENCY must be between %d and %d", minSyncConcurrency, maxSyncConcurrency)
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Sync.RetryDelay <= 0 || c.Sync.MaxRetryDelay < c.Sync.RetryDelay {
		return fmt.Errorf("SYNC_RETRY_DELAY must be positive and not exceed SYNC_MAX_RETRY_DELAY")
	}
	if c.Sync.LinkTimeout <= 0 {
		return fmt.Errorf("SYNC_LINK_TIMEOUT must be positive")
	}
	if c.Sync.WindowDays < 1 || c.Sync.WindowDays > 365 {
		return fmt.Errorf("SYNC_WINDOW_DAYS must be between 1 and 365")
	}
	if c.Sync.DistributionDays < 1 || c.Sync.DistributionDays > c.Sync.WindowDays {
		return fmt.Errorf("SYNC_DISTRIBUTION_DAYS must be between 1 and SYNC_WINDOW_DAYS")
	}
	if c.Sync.StaleRunAfter < time.Minute {
		return fmt.Errorf("SYNC_STALE_RUN_AFTER must be at least 1m")
	}
	if c.Sync.StaleRunAfter <= time.Duration(c.Sync.RetryAttempts)*c.Sync.LinkTimeout {
		return fmt.Errorf("SYNC_STALE_RUN_AFTER must exceed SYNC_RETRY_ATTEMPTS * SYNC_LINK_TIMEOUT")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// Rate limit bounds.
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
		}
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}

	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled")
	}

	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard origin combined with authentication.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := checkURL("NATS_URL", c.NATS.URL, false, natsSchemes); err != nil {
		return err
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// IsProduction reports ENVIRONMENT=production (or prod).
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}
