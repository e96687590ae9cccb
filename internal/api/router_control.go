// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryodaq/cryodaq/internal/auth"
	"github.com/cryodaq/cryodaq/internal/authz"
	"github.com/cryodaq/cryodaq/internal/middleware"
)

// ControlRouter assembles the control endpoint.
type ControlRouter struct {
	handler *ControlHandler
	chi     *ChiMiddleware
	authn   *auth.Authenticator
	authzMW *authz.Middleware
}

// NewControlRouter wires the control endpoint routes.
func NewControlRouter(handler *ControlHandler, chiMW *ChiMiddleware, authn *auth.Authenticator, authzMW *authz.Middleware) *ControlRouter {
	return &ControlRouter{
		handler: handler,
		chi:     chiMW,
		authn:   authn,
		authzMW: authzMW,
	}
}

// Setup configures all control endpoint routes.
func (router *ControlRouter) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chi.CORS())

	r.With(router.chi.RateLimitCustom(RateLimitHealth)).Get("/healthz", router.handler.HealthLive)
	r.Handle("/metrics", promhttp.Handler())

	// Login sits outside Authenticate: it is how tokens are obtained.
	r.With(router.chi.RateLimitCustom(RateLimitLogin)).
		Post("/api/v1/auth/login", router.handler.Login)

	r.Route("/api/v1/instruments", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authn.Authenticate)
		r.Use(router.authzMW.AuthorizeRequest)
		r.Use(router.chi.RateLimit())

		r.Get("/", router.handler.Instruments)
		r.Get("/{name}/status", router.handler.InstrumentStatus)
	})

	r.Route("/api/v1/measurements", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authn.Authenticate)
		r.Use(router.authzMW.AuthorizeRequest)
		r.Use(router.chi.RateLimit())

		r.Get("/", router.handler.Measurements)
		r.Post("/", router.handler.StartMeasurement)
		r.Delete("/{name}", router.handler.StopMeasurement)
	})

	return r
}
