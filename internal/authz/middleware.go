// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package authz

import (
	"net/http"

	"github.com/cryodaq/cryodaq/internal/auth"
	"github.com/cryodaq/cryodaq/internal/logging"
)

// Middleware enforces route authorization for authenticated requests.
type Middleware struct {
	enforcer *Enforcer
	enabled  bool
}

// NewMiddleware creates authorization middleware. enabled false yields a
// pass-through, used with auth mode none where requests carry no role.
func NewMiddleware(enforcer *Enforcer, enabled bool) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		enabled:  enabled,
	}
}

// AuthorizeRequest derives the action from the HTTP method and enforces
// the caller's role against the request path.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		role := ""
		subject := "anonymous"
		if claims != nil {
			role = claims.Role
			subject = claims.Username
		}

		action := methodToAction(r.Method)
		allowed, err := m.enforcer.EnforceRole(role, r.URL.Path, action)
		if err != nil {
			logging.Error().Err(err).Msg("authorization error")
			forbid(w, http.StatusInternalServerError, "INTERNAL_ERROR", "authorization failed")
			return
		}
		if !allowed {
			logging.Warn().
				Str("subject", subject).
				Str("role", role).
				Str("path", r.URL.Path).
				Str("action", action).
				Msg("request forbidden")
			forbid(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// methodToAction maps HTTP methods to policy actions.
func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read"
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return "write"
	case http.MethodDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// forbid writes a minimal enveloped error without importing the api
// package (which imports auth, which this package sits beside).
func forbid(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
