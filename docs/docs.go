// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package docs registers the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g cmd/cryodaqd/doc.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "GitHub Repository",
            "url": "https://github.com/cryodaq/cryodaq/issues"
        },
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/data/append": {
            "post": {
                "tags": ["Data"],
                "summary": "Append rows to a dataset, creating it on first write",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "200": {"description": "rows appended"},
                    "400": {"description": "shape mismatch, unknown field, or invalid path"},
                    "409": {"description": "incompatible schema"}
                }
            }
        },
        "/data/node": {
            "get": {
                "tags": ["Data"],
                "summary": "Describe a node: kind, schema, row count, attributes",
                "parameters": [{"name": "path", "in": "query", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "node info"},
                    "404": {"description": "no node at path"}
                }
            }
        },
        "/data/values": {
            "get": {
                "tags": ["Data"],
                "summary": "Read a row range of a dataset",
                "parameters": [
                    {"name": "path", "in": "query", "type": "string", "required": true},
                    {"name": "start", "in": "query", "type": "integer"},
                    {"name": "stop", "in": "query", "type": "integer"},
                    {"name": "field", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "rows in converted form"},
                    "400": {"description": "not a dataset or unknown field"},
                    "404": {"description": "no node at path"}
                }
            }
        },
        "/data/keys": {
            "get": {
                "tags": ["Data"],
                "summary": "List child names of a group",
                "parameters": [{"name": "path", "in": "query", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "child names"},
                    "400": {"description": "not a group"},
                    "404": {"description": "no node at path"}
                }
            }
        },
        "/data/subscribe": {
            "get": {
                "tags": ["Realtime"],
                "summary": "Upgrade to a WebSocket carrying subscription frames",
                "responses": {"101": {"description": "switching protocols"}}
            }
        },
        "/export": {
            "post": {
                "tags": ["Export"],
                "summary": "Export datasets to a DuckDB file",
                "responses": {
                    "200": {"description": "export report"},
                    "503": {"description": "binary built without duckdb support"}
                }
            }
        },
        "/instruments": {
            "get": {
                "tags": ["Control"],
                "summary": "List registered instruments and their capabilities",
                "responses": {"200": {"description": "instrument list"}}
            }
        },
        "/instruments/{name}/status": {
            "get": {
                "tags": ["Control"],
                "summary": "Read one instrument's status snapshot",
                "parameters": [{"name": "name", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "status payload"},
                    "400": {"description": "instrument has no status capability"},
                    "404": {"description": "unknown instrument"}
                }
            }
        },
        "/measurements": {
            "get": {
                "tags": ["Control"],
                "summary": "List running measurement runs",
                "responses": {"200": {"description": "run list"}}
            },
            "post": {
                "tags": ["Control"],
                "summary": "Start a measurement run over named devices",
                "responses": {
                    "201": {"description": "run started"},
                    "409": {"description": "run name already active"}
                }
            }
        },
        "/measurements/{name}": {
            "delete": {
                "tags": ["Control"],
                "summary": "Stop a measurement run",
                "parameters": [{"name": "name", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "run stopped"},
                    "404": {"description": "no such run"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for a JWT",
                "responses": {
                    "200": {"description": "token issued"},
                    "401": {"description": "bad credentials or auth mode without login"},
                    "429": {"description": "too many attempts"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "CryoDAQ API",
	Description:      "Laboratory instrument control and data acquisition: append-only hierarchical datasets, live subscriptions, and measurement orchestration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
