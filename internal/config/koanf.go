// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"cryodaq.yaml",
	"cryodaq.yml",
	"/etc/cryodaq/config.yaml",
	"/etc/cryodaq/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CRYODAQ_CONFIG"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			DataPort:    30000,
			ControlPort: 42068,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development", // Set CRYODAQ_ENVIRONMENT=production for production checks
		},
		Store: StoreConfig{
			Dir:        ".data",
			Name:       "", // Empty derives the file name from the UTC start time
			InMemory:   false,
			SyncWrites: true,
		},
		Notify: NotifyConfig{
			Workers: 5,
		},
		Status: StatusConfig{
			Enabled:  true,
			Interval: 10 * time.Second,
		},
		Measure: MeasureConfig{
			SampleInterval: 100 * time.Millisecond,
		},
		Security: SecurityConfig{
			AuthMode:          "none", // Lab networks are trusted by default; production refuses this
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		NATS: NATSConfig{
			Enabled:             false,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      false,
			StoreDir:            ".data/nats",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			SubjectPrefix:       "cryodaq.data",
			DedupWindow:         2 * time.Minute,
		},
		Export: ExportConfig{
			Dir:       ".data/export",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// CRYODAQ_DATA_PORT -> server.data_port
	// CRYODAQ_NOTIFY_WORKERS -> notify.workers
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Only variables with a known mapping are accepted; everything else is skipped
// so random environment variables never pollute the config.
//
// Examples:
//   - CRYODAQ_DATA_PORT -> server.data_port
//   - CRYODAQ_DATA_DIR -> store.dir
//   - CRYODAQ_AUTH_MODE -> security.auth_mode
//   - CRYODAQ_NATS_URL -> nats.url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"cryodaq_data_port":    "server.data_port",
		"cryodaq_control_port": "server.control_port",
		"cryodaq_host":         "server.host",
		"cryodaq_timeout":      "server.timeout",
		"cryodaq_environment":  "server.environment",

		// Store mappings
		"cryodaq_data_dir":          "store.dir",
		"cryodaq_data_file":         "store.name",
		"cryodaq_store_in_memory":   "store.in_memory",
		"cryodaq_store_sync_writes": "store.sync_writes",

		// Notify mappings
		"cryodaq_notify_workers": "notify.workers",

		// Status collection mappings
		"cryodaq_status_enabled":  "status.enabled",
		"cryodaq_status_interval": "status.interval",

		// Measurement mappings
		"cryodaq_measure_sample_interval": "measure.sample_interval",

		// Security mappings
		"cryodaq_auth_mode":           "security.auth_mode",
		"cryodaq_jwt_secret":          "security.jwt_secret",
		"cryodaq_session_timeout":     "security.session_timeout",
		"cryodaq_admin_username":      "security.admin_username",
		"cryodaq_admin_password":      "security.admin_password",
		"cryodaq_rate_limit_requests": "security.rate_limit_reqs",
		"cryodaq_rate_limit_window":   "security.rate_limit_window",
		"cryodaq_disable_rate_limit":  "security.rate_limit_disabled",
		"cryodaq_cors_origins":        "security.cors_origins",
		"cryodaq_trusted_proxies":     "security.trusted_proxies",

		// NATS bridge mappings
		"cryodaq_nats_enabled":        "nats.enabled",
		"cryodaq_nats_url":            "nats.url",
		"cryodaq_nats_embedded":       "nats.embedded_server",
		"cryodaq_nats_store_dir":      "nats.store_dir",
		"cryodaq_nats_max_memory":     "nats.max_memory",
		"cryodaq_nats_max_store":      "nats.max_store",
		"cryodaq_nats_retention_days": "nats.stream_retention_days",
		"cryodaq_nats_subject_prefix": "nats.subject_prefix",
		"cryodaq_nats_dedup_window":   "nats.dedup_window",

		// Export mappings
		"cryodaq_export_dir":        "export.dir",
		"cryodaq_export_max_memory": "export.max_memory",
		"cryodaq_export_threads":    "export.threads",

		// Logging mappings
		"cryodaq_log_level":  "logging.level",
		"cryodaq_log_format": "logging.format",
		"cryodaq_log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for custom configuration sources and testing with
// mock configurations.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}
