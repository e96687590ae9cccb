// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

/*
Package config provides centralized configuration management for CryoDAQ.

This package handles loading, validation, and parsing of configuration for
all daemon components. It ensures consistent configuration across the data
server, the control server, and the acquisition pipeline, and provides
sensible defaults for every optional setting.

# Configuration Sources

Configuration is loaded in layers with later layers overriding earlier ones:

  1. Built-in defaults (defaultConfig)
  2. Optional YAML config file (cryodaq.yaml, or CRYODAQ_CONFIG path)
  3. Environment variables (CRYODAQ_* prefix)

# Configuration Structure

The package organizes configuration into logical groups:

  - ServerConfig: Data and control listener settings (ports, host, timeouts)
  - StoreConfig: Append store location and durability
  - NotifyConfig: Callback dispatch worker pool
  - StatusConfig: Periodic instrument status collection
  - SecurityConfig: Authentication, rate limiting, and CORS
  - NATSConfig: Optional JetStream event bridge
  - ExportConfig: Analytical export staging
  - LoggingConfig: Log levels and output formats

# Environment Variables

Servers (ServerConfig):
  - CRYODAQ_DATA_PORT: Data server port (default: 30000)
  - CRYODAQ_CONTROL_PORT: Control server port (default: 42068)
  - CRYODAQ_HOST: Bind address for both servers (default: 0.0.0.0)
  - CRYODAQ_TIMEOUT: HTTP read/write timeout (default: 30s)
  - CRYODAQ_ENVIRONMENT: development, staging, production (default: development)

Append Store (StoreConfig):
  - CRYODAQ_DATA_DIR: Directory for store files (default: .data)
  - CRYODAQ_DATA_FILE: Store file name (default: derived from UTC start time)
  - CRYODAQ_STORE_IN_MEMORY: In-memory store, no disk writes (default: false)
  - CRYODAQ_STORE_SYNC_WRITES: Fsync every batch (default: true)

Notification Dispatch (NotifyConfig):
  - CRYODAQ_NOTIFY_WORKERS: Delivery worker pool size (default: 5)

Status Collection (StatusConfig):
  - CRYODAQ_STATUS_ENABLED: Enable periodic collection (default: true)
  - CRYODAQ_STATUS_INTERVAL: Collection interval (default: 10s)

Security (SecurityConfig):
  - CRYODAQ_AUTH_MODE: none, basic, jwt (default: none)
  - CRYODAQ_JWT_SECRET: JWT signing secret (min 32 chars, required for jwt)
  - CRYODAQ_SESSION_TIMEOUT: JWT token lifetime (default: 24h)
  - CRYODAQ_ADMIN_USERNAME: Admin username (required for jwt/basic)
  - CRYODAQ_ADMIN_PASSWORD: Admin password (min 8 chars, required for jwt/basic)
  - CRYODAQ_RATE_LIMIT_REQUESTS: Requests per window (default: 100)
  - CRYODAQ_RATE_LIMIT_WINDOW: Window duration (default: 1m)
  - CRYODAQ_DISABLE_RATE_LIMIT: Disable rate limiting (default: false)
  - CRYODAQ_CORS_ORIGINS: Comma-separated origins (default: *)
  - CRYODAQ_TRUSTED_PROXIES: Comma-separated proxy IPs

NATS Bridge (NATSConfig):
  - CRYODAQ_NATS_ENABLED: Enable the bridge (default: false)
  - CRYODAQ_NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
  - CRYODAQ_NATS_EMBEDDED: Run embedded NATS server (default: false)
  - CRYODAQ_NATS_STORE_DIR: JetStream storage dir (default: .data/nats)
  - CRYODAQ_NATS_RETENTION_DAYS: Stream retention (default: 7)
  - CRYODAQ_NATS_SUBJECT_PREFIX: Subject prefix (default: cryodaq.data)

Logging (LoggingConfig):
  - CRYODAQ_LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - CRYODAQ_LOG_FORMAT: json, console (default: json)
  - CRYODAQ_LOG_CALLER: Include caller file:line (default: false)

# Production Checks

With CRYODAQ_ENVIRONMENT=production the validator refuses configurations
that are acceptable on a bench but dangerous in a deployment: auth mode
"none" and wildcard CORS combined with authentication both fail Load().
*/
package config
