// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package api

import (
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/websocket"
)

// DataHandler serves the data endpoint: append, reads and the WebSocket
// subscription stream.
type DataHandler struct {
	api      dataserver.API
	upgrader gorillaws.Upgrader
	started  time.Time
}

// NewDataHandler creates the data endpoint handler. allowedOrigins
// restricts WebSocket upgrades the same way CORS restricts the REST
// surface; empty means same-origin only.
func NewDataHandler(api dataserver.API, allowedOrigins []string) *DataHandler {
	return &DataHandler{
		api: api,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		started: time.Now(),
	}
}

// originChecker returns the upgrader origin policy. Requests without an
// Origin header (non-browser clients, the gateway) always pass.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// AppendResponse is the data of a successful append.
type AppendResponse struct {
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
	Total   int64  `json:"total"`
	Created bool   `json:"created"`
}

// Append handles POST /api/v1/data/append.
//
// @Summary Append rows to a dataset
// @Tags data
// @Accept json
// @Produce json
// @Param request body AppendRequest true "Append request"
// @Success 200 {object} APIResponse{data=AppendResponse}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /api/v1/data/append [post]
func (h *DataHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req AppendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	payload, err := record.FromJSON(req.Data)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	res, err := h.api.Append(r.Context(), req.Path, payload, req.Attrs)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteSuccess(w, r, AppendResponse{
		Path:    res.Path,
		Rows:    res.Rows,
		Total:   res.Total,
		Created: res.Created,
	})
}

// Node handles GET /api/v1/data/node.
//
// @Summary Describe a node
// @Tags data
// @Produce json
// @Param path query string true "Node path"
// @Success 200 {object} APIResponse{data=dataserver.NodeInfo}
// @Failure 404 {object} APIResponse
// @Router /api/v1/data/node [get]
func (h *DataHandler) Node(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	info, err := h.api.Node(r.Context(), path)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteSuccess(w, r, info)
}

// ValuesResponse is the data of a successful values read. Plain datasets
// answer with Values, compound datasets with Columns.
type ValuesResponse struct {
	Path    string                   `json:"path"`
	Rows    int                      `json:"rows"`
	Schema  *record.Schema           `json:"schema,omitempty"`
	Values  []interface{}            `json:"values,omitempty"`
	Columns map[string][]interface{} `json:"columns,omitempty"`
}

// Values handles GET /api/v1/data/values.
//
// @Summary Read dataset rows
// @Tags data
// @Produce json
// @Param path query string true "Dataset path"
// @Param start query int false "First row (negative counts from the end)"
// @Param stop query int false "Row after the last"
// @Param field query string false "Single field of a compound dataset"
// @Success 200 {object} APIResponse{data=ValuesResponse}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/data/values [get]
func (h *DataHandler) Values(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	start, ok := queryInt(w, r, "start")
	if !ok {
		return
	}
	stop, ok := queryInt(w, r, "stop")
	if !ok {
		return
	}
	field := r.URL.Query().Get("field")

	batch, err := h.api.Values(r.Context(), path, start, stop, field)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	resp := ValuesResponse{Path: path}
	if batch != nil {
		resp.Rows = batch.Rows
		resp.Schema = batch.Schema
		cols := batch.ColumnValues()
		if plain, ok := cols[""]; ok {
			resp.Values = plain
		} else {
			resp.Columns = cols
		}
	}
	WriteSuccess(w, r, resp)
}

// KeysResponse is the data of a successful keys listing.
type KeysResponse struct {
	Path string   `json:"path"`
	Keys []string `json:"keys"`
}

// Keys handles GET /api/v1/data/keys.
//
// @Summary List the children of a group
// @Tags data
// @Produce json
// @Param path query string true "Group path"
// @Success 200 {object} APIResponse{data=KeysResponse}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/data/keys [get]
func (h *DataHandler) Keys(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	keys, err := h.api.Keys(r.Context(), path)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	WriteSuccess(w, r, KeysResponse{Path: path, Keys: keys})
}

// Subscribe handles GET /api/v1/data/subscribe: upgrades to WebSocket and
// hands the connection to its read/write pumps. Subscriptions live as
// long as the connection.
//
// @Summary Subscribe to store events over WebSocket
// @Tags data
// @Success 101
// @Router /api/v1/data/subscribe [get]
func (h *DataHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Debug().Err(err).Msg("websocket upgrade rejected")
		return
	}
	client := websocket.NewClient(conn, h.api)
	logging.Debug().Uint64("client", client.ID()).Msg("websocket client connected")
	client.Start()
}

// HealthLive handles GET /healthz. Always 200 while the process runs.
func (h *DataHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}

// HealthReady handles GET /readyz: verifies the store answers reads.
func (h *DataHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.api.Keys(r.Context(), "/"); err != nil {
		NewResponseWriter(w, r).ServiceUnavailable("store not ready: " + err.Error())
		return
	}
	WriteSuccess(w, r, map[string]string{"status": "ready"})
}
