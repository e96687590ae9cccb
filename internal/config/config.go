// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package config

import (
	"fmt"
	"time"
)

// Config holds all daemon configuration loaded from environment variables and config files.
// Provides centralized configuration management for every CryoDAQ component: the data
// server, the control server, the append store, notification dispatch, instrument status
// collection, the NATS bridge, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (cryodaq.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Servers:
//     - Server: Data and control listener addresses and timeouts
//
//  2. Acquisition:
//     - Store: Append store location and durability
//     - Notify: Callback dispatch worker pool
//     - Status: Periodic instrument status collection
//     - Measure: Measurement run sampling cadence
//
//  3. Security & Integration:
//     - Security: Authentication, rate limiting, CORS
//     - NATS: Optional event bridge to NATS JetStream
//     - Export: Analytical export staging
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Server.DataPort, cfg.Store.Dir, etc. are now populated
//
// Validation:
// The Load() function validates all fields and returns an error if values are
// malformed (out-of-range ports, unknown auth mode) or if authentication is
// enabled but credentials are incomplete.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Notify   NotifyConfig   `koanf:"notify"`
	Status   StatusConfig   `koanf:"status"`
	Measure  MeasureConfig  `koanf:"measure"`
	Security SecurityConfig `koanf:"security"`
	NATS     NATSConfig     `koanf:"nats"`   // Optional: Republish store events to NATS JetStream
	Export   ExportConfig   `koanf:"export"` // Optional: DuckDB export staging
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds listener settings for both HTTP servers. The data server
// carries append traffic and subscriptions, the control server carries
// instrument and measurement management. They bind separately so a saturated
// acquisition link never starves operator commands.
//
// Environment Variables:
//   - CRYODAQ_DATA_PORT: Data server port (default: 30000)
//   - CRYODAQ_CONTROL_PORT: Control server port (default: 42068)
//   - CRYODAQ_HOST: Bind address for both servers (default: 0.0.0.0)
//   - CRYODAQ_TIMEOUT: Read/write timeout for HTTP handlers (default: 30s)
//   - CRYODAQ_ENVIRONMENT: "development", "staging" or "production" (default: development)
type ServerConfig struct {
	DataPort    int           `koanf:"data_port"`
	ControlPort int           `koanf:"control_port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DataAddr returns the listen address of the data server.
func (c ServerConfig) DataAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.DataPort)
}

// ControlAddr returns the listen address of the control server.
func (c ServerConfig) ControlAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.ControlPort)
}

// StoreConfig holds append store settings.
//
// Environment Variables:
//   - CRYODAQ_DATA_DIR: Directory for store files (default: .data)
//   - CRYODAQ_DATA_FILE: Store file name; empty derives one from the UTC start time
//   - CRYODAQ_STORE_IN_MEMORY: Keep the store in memory, nothing touches disk (default: false)
//   - CRYODAQ_STORE_SYNC_WRITES: Fsync every batch before acknowledging (default: true)
type StoreConfig struct {
	Dir        string `koanf:"dir"`
	Name       string `koanf:"name"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// NotifyConfig holds callback dispatch settings.
//
// Environment Variables:
//   - CRYODAQ_NOTIFY_WORKERS: Delivery worker pool size (default: 5)
type NotifyConfig struct {
	Workers int `koanf:"workers"`
}

// StatusConfig holds periodic instrument status collection settings.
//
// Environment Variables:
//   - CRYODAQ_STATUS_ENABLED: Collect instrument status periodically (default: true)
//   - CRYODAQ_STATUS_INTERVAL: Collection interval (default: 10s)
type StatusConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// MeasureConfig holds measurement run settings. The sample interval paces
// every device worker of a run; it is independent of the status collection
// interval, which serves slow housekeeping reads.
//
// Environment Variables:
//   - CRYODAQ_MEASURE_SAMPLE_INTERVAL: Per-device sampling interval (default: 100ms)
type MeasureConfig struct {
	SampleInterval time.Duration `koanf:"sample_interval"`
}

// SecurityConfig holds authentication and rate limiting settings for the
// control server. The data server is deliberately unauthenticated: it lives
// on the instrument network and acquisition clients must never stall on a
// token refresh.
//
// Environment Variables:
//   - CRYODAQ_AUTH_MODE: none, basic, or jwt (default: none)
//   - CRYODAQ_JWT_SECRET: JWT signing secret (min 32 chars, required for jwt mode)
//   - CRYODAQ_SESSION_TIMEOUT: JWT token lifetime (default: 24h)
//   - CRYODAQ_ADMIN_USERNAME: Admin login username (required for jwt/basic)
//   - CRYODAQ_ADMIN_PASSWORD: Admin login password (required for jwt/basic)
//   - CRYODAQ_RATE_LIMIT_REQUESTS: Requests allowed per window (default: 100)
//   - CRYODAQ_RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - CRYODAQ_DISABLE_RATE_LIMIT: Disable rate limiting entirely (default: false)
//   - CRYODAQ_CORS_ORIGINS: Comma-separated allowed origins (default: *)
//   - CRYODAQ_TRUSTED_PROXIES: Comma-separated trusted proxy IPs
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
}

// NATSConfig holds settings for the optional bridge that republishes store
// events to NATS JetStream for downstream consumers (plotters, archivers,
// alerting). Delivery is best effort; the store never blocks on the bridge.
//
// Environment Variables:
//   - CRYODAQ_NATS_ENABLED: Enable the bridge (default: false)
//   - CRYODAQ_NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
//   - CRYODAQ_NATS_EMBEDDED: Run an embedded NATS server (default: false)
//   - CRYODAQ_NATS_STORE_DIR: JetStream storage directory (default: .data/nats)
//   - CRYODAQ_NATS_MAX_MEMORY: JetStream memory limit in bytes (default: 1GB)
//   - CRYODAQ_NATS_MAX_STORE: JetStream disk limit in bytes (default: 10GB)
//   - CRYODAQ_NATS_RETENTION_DAYS: Stream retention in days (default: 7)
//   - CRYODAQ_NATS_SUBJECT_PREFIX: Subject prefix for published events (default: cryodaq.data)
//   - CRYODAQ_NATS_DEDUP_WINDOW: JetStream duplicate detection window (default: 2m)
type NATSConfig struct {
	Enabled             bool          `koanf:"enabled"`
	URL                 string        `koanf:"url"`
	EmbeddedServer      bool          `koanf:"embedded_server"`
	StoreDir            string        `koanf:"store_dir"`
	MaxMemory           int64         `koanf:"max_memory"`
	MaxStore            int64         `koanf:"max_store"`
	StreamRetentionDays int           `koanf:"stream_retention_days"`
	SubjectPrefix       string        `koanf:"subject_prefix"`
	DedupWindow         time.Duration `koanf:"dedup_window"`
}

// ExportConfig holds settings for analytical exports of acquired datasets.
//
// Environment Variables:
//   - CRYODAQ_EXPORT_DIR: Directory for export output files (default: .data/export)
//   - CRYODAQ_EXPORT_MAX_MEMORY: DuckDB memory limit (default: 2GB)
//   - CRYODAQ_EXPORT_THREADS: DuckDB thread count, 0 uses NumCPU (default: 0)
type ExportConfig struct {
	Dir       string `koanf:"dir"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - CRYODAQ_LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - CRYODAQ_LOG_FORMAT: json, console (default: json)
//   - CRYODAQ_LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	// Console is human-readable for bench work.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Adds slight performance overhead.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load reads configuration from environment variables and optional config file.
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Built-in defaults
//  2. Config file (cryodaq.yaml if exists, or path specified in CRYODAQ_CONFIG env var)
//  3. Environment variables
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
