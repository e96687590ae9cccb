// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package gateway

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
)

// breakerName labels the gateway breaker in logs and metrics.
const breakerName = "gateway-http"

// newBreaker creates the circuit breaker guarding HTTP calls. Five
// consecutive failures open it; after 10 seconds one probe request is
// let through. Only transport failures count: a 404 from a healthy
// daemon is an answer, not an outage.
func newBreaker() *gobreaker.CircuitBreaker[*httpResult] {
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.UpdateBreakerState(name, int(to))
		},
	}
	return gobreaker.NewCircuitBreaker[*httpResult](settings)
}
