// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package api

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// validate holds the shared validator instance; validator caches struct
// metadata internally, so a single instance serves all handlers.
var validate = validator.New()

// AppendRequest is the body of POST /api/v1/data/append. Data carries the
// payload in wire form: a nested JSON array for plain data, or an object
// of field name to column array for compound data.
type AppendRequest struct {
	Path  string                 `json:"path" validate:"required"`
	Data  json.RawMessage        `json:"data" validate:"required"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// MeasurementRequest is the body of POST /api/v1/measurements.
type MeasurementRequest struct {
	Name    string   `json:"name" validate:"required,max=128"`
	Devices []string `json:"devices" validate:"required,min=1,dive,required"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ExportRequest is the body of POST /api/v1/export.
type ExportRequest struct {
	// Paths lists the datasets to export; empty exports every dataset.
	Paths []string `json:"paths,omitempty"`

	// File is the destination DuckDB file path on the server host.
	File string `json:"file" validate:"required"`
}

// decodeAndValidate decodes the request body into dst and runs struct
// validation. On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		NewResponseWriter(w, r).BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var details []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details = append(details, fe.Field()+" failed "+fe.Tag())
			}
		}
		NewResponseWriter(w, r).ValidationError("request validation failed", details)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter. Returns nil when
// the parameter is absent, an error response when it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		NewResponseWriter(w, r).BadRequest("parameter " + name + " must be an integer")
		return nil, false
	}
	return &n, true
}
