// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateNotify(); err != nil {
		return err
	}

	if err := c.validateStatus(); err != nil {
		return err
	}

	if err := c.validateMeasure(); err != nil {
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

// validateServer validates listener configuration
func (c *Config) validateServer() error {
	if c.Server.DataPort < 1 || c.Server.DataPort > 65535 {
		return fmt.Errorf("CRYODAQ_DATA_PORT must be between 1 and 65535")
	}
	if c.Server.ControlPort < 1 || c.Server.ControlPort > 65535 {
		return fmt.Errorf("CRYODAQ_CONTROL_PORT must be between 1 and 65535")
	}
	if c.Server.DataPort == c.Server.ControlPort {
		return fmt.Errorf("CRYODAQ_DATA_PORT and CRYODAQ_CONTROL_PORT must differ, both are %d", c.Server.DataPort)
	}
	if c.Server.Timeout < time.Second {
		return fmt.Errorf("CRYODAQ_TIMEOUT must be at least 1s")
	}
	return nil
}

// validateStore validates append store configuration
func (c *Config) validateStore() error {
	if c.Store.InMemory {
		return nil // Nothing touches disk
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("CRYODAQ_DATA_DIR is required unless CRYODAQ_STORE_IN_MEMORY=true")
	}
	return nil
}

// Notify worker bounds
const (
	minNotifyWorkers = 1
	maxNotifyWorkers = 256
)

// validateNotify validates callback dispatch configuration
func (c *Config) validateNotify() error {
	if c.Notify.Workers < minNotifyWorkers || c.Notify.Workers > maxNotifyWorkers {
		return fmt.Errorf("CRYODAQ_NOTIFY_WORKERS must be between %d and %d", minNotifyWorkers, maxNotifyWorkers)
	}
	return nil
}

// Status interval bounds
const (
	minStatusInterval = 100 * time.Millisecond
	maxStatusInterval = time.Hour
)

// validateStatus validates status collection configuration
func (c *Config) validateStatus() error {
	if !c.Status.Enabled {
		return nil
	}
	if c.Status.Interval < minStatusInterval || c.Status.Interval > maxStatusInterval {
		return fmt.Errorf("CRYODAQ_STATUS_INTERVAL must be between %v and %v", minStatusInterval, maxStatusInterval)
	}
	return nil
}

// Measurement sampling bounds
const (
	minSampleInterval = time.Millisecond
	maxSampleInterval = time.Minute
)

// validateMeasure validates measurement run configuration
func (c *Config) validateMeasure() error {
	if c.Measure.SampleInterval < minSampleInterval || c.Measure.SampleInterval > maxSampleInterval {
		return fmt.Errorf("CRYODAQ_MEASURE_SAMPLE_INTERVAL must be between %v and %v", minSampleInterval, maxSampleInterval)
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	return c.validateAuthModeConfig()
}

// validAuthModes defines the allowed authentication modes
var validAuthModes = map[string]bool{
	"none":  true,
	"basic": true,
	"jwt":   true,
}

// validateAuthMode checks if auth mode is valid
func (c *Config) validateAuthMode() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("CRYODAQ_AUTH_MODE must be one of: none, basic, jwt")
	}

	return c.validateAuthModeForEnvironment()
}

// validateAuthModeForEnvironment ensures the auth mode is appropriate for the
// environment. An unauthenticated control server is fine on a bench but must
// never reach a production deployment unnoticed.
func (c *Config) validateAuthModeForEnvironment() error {
	if c.Security.AuthMode == "none" && c.IsProduction() {
		return fmt.Errorf("CRYODAQ_AUTH_MODE=none is not allowed when CRYODAQ_ENVIRONMENT=production. " +
			"Either set CRYODAQ_AUTH_MODE to basic or jwt " +
			"or use CRYODAQ_ENVIRONMENT=development for bench setups")
	}

	return nil
}

// IsProduction returns true if the daemon is running in production mode.
// Production mode is determined by the CRYODAQ_ENVIRONMENT environment variable.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the daemon is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// validateCORS rejects wildcard CORS in production with authentication enabled.
// Wildcard CORS + authentication lets any origin replay stolen credentials.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CRYODAQ_CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Either set specific origins: CRYODAQ_CORS_ORIGINS=https://lab.example.edu " +
			"or use CRYODAQ_ENVIRONMENT=development for bench setups")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("CRYODAQ_RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("CRYODAQ_RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateAuthModeConfig validates configuration for the selected auth mode
func (c *Config) validateAuthModeConfig() error {
	switch c.Security.AuthMode {
	case "jwt":
		return c.validateJWTAuth()
	case "basic":
		return c.validateBasicAuth()
	}
	return nil // "none" mode has no additional validation
}

// validateJWTAuth validates JWT authentication configuration
func (c *Config) validateJWTAuth() error {
	if err := c.validateJWTSecret(); err != nil {
		return err
	}
	return c.validateAdminCredentials("jwt")
}

// validateJWTSecret validates the JWT secret configuration
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("CRYODAQ_JWT_SECRET is required when CRYODAQ_AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("CRYODAQ_JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("CRYODAQ_JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateBasicAuth validates Basic authentication configuration
func (c *Config) validateBasicAuth() error {
	return c.validateAdminCredentials("basic")
}

// validateAdminCredentials validates admin username and password
func (c *Config) validateAdminCredentials(authMode string) error {
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("CRYODAQ_ADMIN_USERNAME is required when CRYODAQ_AUTH_MODE is %s", authMode)
	}
	if c.Security.AdminPassword == "" {
		return fmt.Errorf("CRYODAQ_ADMIN_PASSWORD is required when CRYODAQ_AUTH_MODE is %s", authMode)
	}
	if len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("CRYODAQ_ADMIN_PASSWORD must be at least 8 characters")
	}
	if containsPlaceholder(c.Security.AdminPassword) {
		return fmt.Errorf("CRYODAQ_ADMIN_PASSWORD contains a placeholder value - set a secure password")
	}
	return nil
}

// Stream retention bounds
const (
	minRetentionDays = 1
	maxRetentionDays = 365
)

// validateNATS validates NATS bridge configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if !c.NATS.EmbeddedServer {
		if c.NATS.URL == "" {
			return fmt.Errorf("CRYODAQ_NATS_URL is required when CRYODAQ_NATS_ENABLED=true without an embedded server")
		}
		if err := validateNATSURL(c.NATS.URL); err != nil {
			return fmt.Errorf("CRYODAQ_NATS_URL is invalid: %w", err)
		}
	}

	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("CRYODAQ_NATS_STORE_DIR is required when CRYODAQ_NATS_EMBEDDED=true")
	}

	if c.NATS.StreamRetentionDays < minRetentionDays || c.NATS.StreamRetentionDays > maxRetentionDays {
		return fmt.Errorf("CRYODAQ_NATS_RETENTION_DAYS must be between %d and %d", minRetentionDays, maxRetentionDays)
	}

	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("CRYODAQ_NATS_SUBJECT_PREFIX must not be empty")
	}

	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted.
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames and optional ports
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, 192.168.1.100:4222)")
	}

	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("CRYODAQ_LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("CRYODAQ_LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value. This prevents accidental deployment
// with insecure default credentials.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_PASSWORD",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
