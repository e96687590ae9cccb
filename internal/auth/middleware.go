// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/logging"
)

// Supported auth modes.
const (
	ModeNone  = "none"
	ModeBasic = "basic"
	ModeJWT   = "jwt"
)

// RoleAdmin is the role granted to the configured admin user and to
// anonymous identities in mode none.
const RoleAdmin = "admin"

// ErrTooManyAttempts indicates the per-username login limiter fired.
var ErrTooManyAttempts = errors.New("too many login attempts")

// claimsKey is the context key for the authenticated identity.
type claimsKey struct{}

// ClaimsFromContext returns the identity attached by Authenticate, or
// nil on unauthenticated requests (mode none skips attaching).
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// ContextWithClaims attaches an identity; exported for handler tests.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// Authenticator dispatches authentication by configured mode and issues
// tokens in jwt mode.
type Authenticator struct {
	mode    string
	basic   *BasicAuthManager
	jwt     *JWTManager
	limiter *loginLimiter
}

// NewAuthenticator builds the authenticator for the configured mode.
// Mode none needs no credentials; basic and jwt require the admin
// credentials, and jwt additionally the signing secret.
func NewAuthenticator(sec config.SecurityConfig) (*Authenticator, error) {
	a := &Authenticator{
		mode:    sec.AuthMode,
		limiter: newLoginLimiter(time.Minute, 5),
	}

	switch sec.AuthMode {
	case ModeNone:
		return a, nil
	case ModeBasic, ModeJWT:
		basic, err := NewBasicAuthManager(sec.AdminUsername, sec.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("auth mode %s: %w", sec.AuthMode, err)
		}
		a.basic = basic
	default:
		return nil, fmt.Errorf("unknown auth mode %q", sec.AuthMode)
	}

	if sec.AuthMode == ModeJWT {
		jwtm, err := NewJWTManager(sec.JWTSecret, sec.SessionTimeout)
		if err != nil {
			return nil, fmt.Errorf("auth mode jwt: %w", err)
		}
		a.jwt = jwtm
	}
	return a, nil
}

// Mode returns the configured auth mode.
func (a *Authenticator) Mode() string {
	return a.mode
}

// Login verifies credentials and issues a token. Only meaningful in jwt
// mode; other modes reject.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if a.jwt == nil {
		return "", time.Time{}, fmt.Errorf("login requires auth mode jwt")
	}
	if !a.limiter.allow(username) {
		return "", time.Time{}, ErrTooManyAttempts
	}
	if !a.basic.CheckPassword(username, password) {
		return "", time.Time{}, fmt.Errorf("invalid credentials")
	}
	return a.jwt.GenerateToken(username, RoleAdmin)
}

// Authenticate wraps a handler with mode-appropriate authentication.
// The verified identity lands in the request context for authz.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	switch a.mode {
	case ModeBasic:
		return a.authenticateBasic(next)
	case ModeJWT:
		return a.authenticateJWT(next)
	default:
		return next
	}
}

func (a *Authenticator) authenticateBasic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := a.basic.ValidateCredentials(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", a.basic.WWWAuthenticateHeader())
			unauthorized(w, "authentication required")
			return
		}
		claims := &Claims{Username: username, Role: RoleAdmin}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func (a *Authenticator) authenticateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			unauthorized(w, "bearer token required")
			return
		}
		claims, err := a.jwt.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Msg("token rejected")
			unauthorized(w, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// unauthorized writes a minimal 401 without pulling in the api package
// (which imports this one).
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}
