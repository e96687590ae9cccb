// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/goccy/go-json"

	"github.com/cryodaq/cryodaq/internal/api"
	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// ErrUnavailable indicates the daemon could not be reached (transport
// failure or open circuit breaker).
var ErrUnavailable = errors.New("data server unavailable")

// Config holds gateway connection settings.
type Config struct {
	// BaseURL is the data endpoint root, e.g. http://localhost:30000.
	BaseURL string

	// Token is sent as a bearer token when set (auth mode jwt).
	Token string

	// Username and Password are sent as Basic Auth when set and no
	// token is configured (auth mode basic).
	Username string
	Password string

	// Timeout bounds each HTTP call. Zero selects 30 seconds.
	Timeout time.Duration
}

// Client is the remote facade over the data endpoint. It satisfies the
// same interface as the in-process service.
type Client struct {
	base    string
	token   string
	user    string
	pass    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*httpResult]
	subs    *subscriptionManager
}

var _ dataserver.API = (*Client)(nil)

// NewClient creates a gateway client. Dial lazily: construction does
// not contact the daemon.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		base:    base,
		token:   cfg.Token,
		user:    cfg.Username,
		pass:    cfg.Password,
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker(),
	}
	c.subs = newSubscriptionManager(c)
	return c, nil
}

// Close tears down the subscription connection. HTTP needs no teardown.
func (c *Client) Close() error {
	return c.subs.close()
}

// httpResult carries one response through the circuit breaker.
type httpResult struct {
	status int
	body   []byte
}

// envelope mirrors the server's response wrapper with the payload left
// raw for the caller to decode.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *api.APIError   `json:"error"`
}

// authorize attaches the configured credentials.
func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
}

// call performs one enveloped request. Transport failures pass through
// the breaker; enveloped errors are rebuilt into their sentinels.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	res, err := c.breaker.Execute(func() (*httpResult, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, payload)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.authorize(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
		if err != nil {
			return nil, err
		}
		return &httpResult{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}

	var env envelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return nil, fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
	}
	if !env.Success {
		return nil, envelopeError(res.status, env.Error)
	}
	return env.Data, nil
}

// envelopeError rebuilds a typed error from an error envelope, so
// errors.Is works identically against the gateway and the in-process
// service.
func envelopeError(status int, apiErr *api.APIError) error {
	if apiErr == nil {
		return fmt.Errorf("request failed with status %d", status)
	}
	if sentinel := api.SentinelForCode(apiErr.Code); sentinel != nil {
		return fmt.Errorf("%s: %w", apiErr.Message, sentinel)
	}
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}

// Append sends one payload to the append endpoint.
func (c *Client) Append(ctx context.Context, path string, payload record.Payload, attrs map[string]interface{}) (store.AppendResult, error) {
	data, err := payload.EncodeJSON()
	if err != nil {
		return store.AppendResult{}, fmt.Errorf("encode payload: %w", err)
	}
	raw, err := c.call(ctx, http.MethodPost, "/api/v1/data/append", nil, api.AppendRequest{
		Path:  path,
		Data:  data,
		Attrs: attrs,
	})
	if err != nil {
		return store.AppendResult{}, err
	}
	var resp api.AppendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return store.AppendResult{}, fmt.Errorf("decode append response: %w", err)
	}
	return store.AppendResult{
		Path:    resp.Path,
		Rows:    resp.Rows,
		Total:   resp.Total,
		Created: resp.Created,
	}, nil
}

// Node fetches kind, schema, row count and attributes of a node.
func (c *Client) Node(ctx context.Context, path string) (dataserver.NodeInfo, error) {
	raw, err := c.call(ctx, http.MethodGet, "/api/v1/data/node", url.Values{"path": {path}}, nil)
	if err != nil {
		return dataserver.NodeInfo{}, err
	}
	var info dataserver.NodeInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return dataserver.NodeInfo{}, fmt.Errorf("decode node response: %w", err)
	}
	return info, nil
}

// Values reads a row window of a dataset.
func (c *Client) Values(ctx context.Context, path string, start, stop *int, field string) (*record.Batch, error) {
	query := url.Values{"path": {path}}
	if start != nil {
		query.Set("start", strconv.Itoa(*start))
	}
	if stop != nil {
		query.Set("stop", strconv.Itoa(*stop))
	}
	if field != "" {
		query.Set("field", field)
	}

	raw, err := c.call(ctx, http.MethodGet, "/api/v1/data/values", query, nil)
	if err != nil {
		return nil, err
	}
	var resp api.ValuesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode values response: %w", err)
	}
	return batchFromWire(resp.Rows, resp.Values, resp.Columns)
}

// batchFromWire rebuilds a batch from the wire representation by
// round-tripping through the payload codec, so the client and server
// agree on typing rules by construction.
func batchFromWire(rows int, values []interface{}, columns map[string][]interface{}) (*record.Batch, error) {
	if rows == 0 {
		return &record.Batch{}, nil
	}
	var wire []byte
	var err error
	if columns != nil {
		wire, err = json.Marshal(columns)
	} else {
		wire, err = json.Marshal(values)
	}
	if err != nil {
		return nil, fmt.Errorf("re-encode wire data: %w", err)
	}
	payload, err := record.FromJSON(wire)
	if err != nil {
		return nil, fmt.Errorf("decode wire data: %w", err)
	}
	return record.Normalize(payload, nil)
}

// Keys lists the children of a group.
func (c *Client) Keys(ctx context.Context, path string) ([]string, error) {
	raw, err := c.call(ctx, http.MethodGet, "/api/v1/data/keys", url.Values{"path": {path}}, nil)
	if err != nil {
		return nil, err
	}
	var resp api.KeysResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode keys response: %w", err)
	}
	return resp.Keys, nil
}

// Subscribe registers target for events at path. The returned handle is
// stable across WebSocket reconnects.
func (c *Client) Subscribe(ctx context.Context, path string, kind notify.Kind, target notify.Target) (string, error) {
	return c.subs.subscribe(ctx, path, kind, target)
}

// Unsubscribe removes a subscription by handle. Unknown handles are
// ignored, matching the server facade.
func (c *Client) Unsubscribe(ctx context.Context, handle string) error {
	return c.subs.unsubscribe(ctx, handle)
}
