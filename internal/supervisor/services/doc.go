// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package services adapts the daemon's long-running components to
// suture.Service, translating each one's lifecycle (blocking serve
// loops, Start/Stop pairs) into context-aware Serve methods.
package services
