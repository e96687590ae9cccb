// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginLimiter rate limits login attempts per username. The HTTP layer
// already limits per IP; this closes the distributed-guess hole where
// many IPs hammer one account.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// newLoginLimiter allows roughly one attempt per interval with the given
// burst per username.
func newLoginLimiter(interval time.Duration, burst int) *loginLimiter {
	return &loginLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(interval),
		burst:    burst,
	}
}

// allow reports whether another attempt for username may proceed now.
func (l *loginLimiter) allow(username string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[username]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[username] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
