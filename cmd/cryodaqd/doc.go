// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package main runs the CryoDAQ daemon.
//
// @title CryoDAQ API
// @version 1.0
// @description Laboratory instrument control and data acquisition server.
// @description
// @description Two HTTP endpoints run in one process: the data endpoint
// @description (default :30000) carries appends, reads, and WebSocket
// @description subscriptions; the control endpoint (default :42068) carries
// @description instrument and measurement management plus login.
// @description
// @description All responses use a standard envelope with success flag,
// @description data, error (code, message, details), and metadata (request
// @description id, timestamp, duration).
//
// @contact.name GitHub Repository
// @contact.url https://github.com/cryodaq/cryodaq/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:30000
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT bearer token. Obtain via /api/v1/auth/login on the control endpoint.
//
// @tag.name Data
// @tag.description Append-only dataset access: append, node info, values, keys
//
// @tag.name Realtime
// @tag.description WebSocket subscriptions for dataset and group events
//
// @tag.name Control
// @tag.description Instrument registry and measurement run management
//
// @tag.name Export
// @tag.description Columnar export of acquired datasets
//
// @tag.name Auth
// @tag.description Authentication endpoints
package main
