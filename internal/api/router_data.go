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
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/cryodaq/cryodaq/internal/auth"
	"github.com/cryodaq/cryodaq/internal/authz"
	"github.com/cryodaq/cryodaq/internal/middleware"
)

// Exporter dumps datasets to a columnar file. The duckdb build provides
// a real implementation; without the tag the router answers 503.
type Exporter interface {
	Export(r *http.Request, req ExportRequest) (interface{}, error)
}

// DataRouter assembles the data endpoint.
type DataRouter struct {
	handler  *DataHandler
	chi      *ChiMiddleware
	authn    *auth.Authenticator
	authzMW  *authz.Middleware
	exporter Exporter
}

// NewDataRouter wires the data endpoint routes. exporter may be nil.
func NewDataRouter(handler *DataHandler, chiMW *ChiMiddleware, authn *auth.Authenticator, authzMW *authz.Middleware, exporter Exporter) *DataRouter {
	return &DataRouter{
		handler:  handler,
		chi:      chiMW,
		authn:    authn,
		authzMW:  authzMW,
		exporter: exporter,
	}
}

// Setup configures all data endpoint routes.
func (router *DataRouter) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chi.CORS())

	// Health and introspection. No auth: monitoring probes have no
	// credentials, and nothing here exposes stored data.
	r.With(router.chi.RateLimitCustom(RateLimitHealth)).Get("/healthz", router.handler.HealthLive)
	r.With(router.chi.RateLimitCustom(RateLimitHealth)).Get("/readyz", router.handler.HealthReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler())

	r.Route("/api/v1/data", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authn.Authenticate)
		r.Use(router.authzMW.AuthorizeRequest)

		r.With(router.chi.RateLimitCustom(RateLimitWrite), middleware.Compression).
			Post("/append", router.handler.Append)
		r.With(router.chi.RateLimitCustom(RateLimitRead), middleware.Compression).
			Get("/node", router.handler.Node)
		r.With(router.chi.RateLimitCustom(RateLimitRead), middleware.Compression).
			Get("/values", router.handler.Values)
		r.With(router.chi.RateLimitCustom(RateLimitRead), middleware.Compression).
			Get("/keys", router.handler.Keys)
		r.With(router.chi.RateLimitCustom(RateLimitWebSocket)).
			Get("/subscribe", router.handler.Subscribe)
	})

	r.Route("/api/v1/export", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authn.Authenticate)
		r.Use(router.authzMW.AuthorizeRequest)
		r.With(router.chi.RateLimitCustom(RateLimitExport)).Post("/", router.exportHandler())
	})

	return r
}

// exportHandler serves POST /api/v1/export, answering 503 when the
// binary was built without export support.
func (router *DataRouter) exportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if router.exporter == nil {
			NewResponseWriter(w, r).ServiceUnavailable("export support not built in; rebuild with -tags duckdb")
			return
		}
		var req ExportRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		result, err := router.exporter.Export(r, req)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		WriteSuccess(w, r, result)
	}
}
