// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

/*
Package auth implements authentication for the HTTP endpoints.

Three modes, selected by CRYODAQ_AUTH_MODE:

  - none: every request passes with an anonymous admin identity. The
    default for a single-user lab box on a trusted network.
  - basic: HTTP Basic Auth against the configured admin credentials,
    verified with bcrypt.
  - jwt: HS256 bearer tokens issued by POST /api/v1/auth/login; token
    claims carry the username and role consumed by the authz layer.

Login attempts are rate limited per username to slow brute forcing
independently of the IP-keyed HTTP rate limits.
*/
package auth
