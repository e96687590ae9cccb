// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cryodaq/cryodaq/internal/auth"
	"github.com/cryodaq/cryodaq/internal/instrument"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/measure"
	"github.com/cryodaq/cryodaq/internal/metrics"
)

// ControlHandler serves the control endpoint: instrument inventory,
// measurement runs and authentication.
type ControlHandler struct {
	registry *instrument.Registry
	runner   *measure.Runner
	auth     *auth.Authenticator
	started  time.Time
}

// NewControlHandler creates the control endpoint handler.
func NewControlHandler(registry *instrument.Registry, runner *measure.Runner, authn *auth.Authenticator) *ControlHandler {
	return &ControlHandler{
		registry: registry,
		runner:   runner,
		auth:     authn,
		started:  time.Now(),
	}
}

// InstrumentInfo describes one registered device.
type InstrumentInfo struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Instruments handles GET /api/v1/instruments.
//
// @Summary List registered instruments
// @Tags control
// @Produce json
// @Success 200 {object} APIResponse{data=[]InstrumentInfo}
// @Router /api/v1/instruments [get]
func (h *ControlHandler) Instruments(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	out := make([]InstrumentInfo, 0, len(names))
	for _, name := range names {
		dev, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, InstrumentInfo{
			Name:         name,
			Capabilities: instrument.Capabilities(dev),
		})
	}
	WriteSuccess(w, r, out)
}

// InstrumentStatus handles GET /api/v1/instruments/{name}/status. The
// device is sampled on request; nothing is appended to the store.
//
// @Summary Sample the status of one instrument
// @Tags control
// @Produce json
// @Param name path string true "Device name"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/instruments/{name}/status [get]
func (h *ControlHandler) InstrumentStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	provider, err := h.registry.Status(name)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	payload, err := provider.Status(r.Context())
	if err != nil {
		NewResponseWriter(w, r).InternalError("status read failed: " + err.Error())
		return
	}
	data, err := payload.EncodeJSON()
	if err != nil {
		NewResponseWriter(w, r).InternalError("status encode failed: " + err.Error())
		return
	}
	WriteSuccess(w, r, rawJSON(data))
}

// rawJSON carries pre-encoded JSON through the response envelope.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// StartMeasurement handles POST /api/v1/measurements.
//
// @Summary Start a measurement run
// @Tags control
// @Accept json
// @Produce json
// @Param request body MeasurementRequest true "Run name and devices"
// @Success 201 {object} APIResponse{data=measure.RunInfo}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /api/v1/measurements [post]
func (h *ControlHandler) StartMeasurement(w http.ResponseWriter, r *http.Request) {
	var req MeasurementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	info, err := h.runner.Start(req.Name, req.Devices)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(info)
}

// StopMeasurement handles DELETE /api/v1/measurements/{name}.
//
// @Summary Stop a measurement run
// @Tags control
// @Produce json
// @Param name path string true "Run name"
// @Success 204
// @Failure 404 {object} APIResponse
// @Router /api/v1/measurements/{name} [delete]
func (h *ControlHandler) StopMeasurement(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.runner.Stop(name); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// Measurements handles GET /api/v1/measurements.
//
// @Summary List running measurements
// @Tags control
// @Produce json
// @Success 200 {object} APIResponse{data=[]measure.RunInfo}
// @Router /api/v1/measurements [get]
func (h *ControlHandler) Measurements(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.runner.List())
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/v1/auth/login.
//
// @Summary Authenticate and obtain a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} APIResponse{data=LoginResponse}
// @Failure 401 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/v1/auth/login [post]
func (h *ControlHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	token, expires, err := h.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrTooManyAttempts) {
		metrics.RecordAuthAttempt("throttled")
		NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many login attempts")
		return
	}
	if err != nil {
		metrics.RecordAuthAttempt("failure")
		logging.Warn().Str("username", req.Username).Msg("login rejected")
		NewResponseWriter(w, r).Unauthorized("invalid credentials")
		return
	}
	metrics.RecordAuthAttempt("success")
	WriteSuccess(w, r, LoginResponse{Token: token, ExpiresAt: expires})
}

// HealthLive handles GET /healthz on the control endpoint.
func (h *ControlHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}
