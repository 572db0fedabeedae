// Package query is the pull side of the protocol: the HTTP client for
// signal lookups, path traces and the fire-and-forget command endpoints.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"unoc/core-go/internal/engine"
	"unoc/core-go/internal/sim"
	"unoc/core-go/internal/topology"
)

// RequestError is a non-fatal query or command failure. It surfaces as
// a dismissible notice; nothing retries it.
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("request failed: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("request failed: %d: %s", e.Status, e.Message)
}

// Client talks to the core service's API. It implements engine.Querier.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// errorEnvelope matches the API's error body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var env errorEnvelope
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(raw, &env)
		msg := env.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RequestError{Status: resp.StatusCode, Code: env.Error.Code, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Topology fetches the full current topology.
func (c *Client) Topology(ctx context.Context) (topology.Topology, error) {
	var t topology.Topology
	err := c.do(ctx, http.MethodGet, "/api/topology", nil, &t)
	return t, err
}

// Events fetches the event log, newest first.
func (c *Client) Events(ctx context.Context) ([]sim.Event, error) {
	var events []sim.Event
	err := c.do(ctx, http.MethodGet, "/api/events", nil, &events)
	return events, err
}

// Signal fetches the stored receive level of an end device.
func (c *Client) Signal(ctx context.Context, deviceID string) (engine.SignalInfo, error) {
	var info engine.SignalInfo
	err := c.do(ctx, http.MethodGet, "/api/devices/"+url.PathEscape(deviceID)+"/signal", nil, &info)
	return info, err
}

// Trace asks the server for a path between two devices.
func (c *Client) Trace(ctx context.Context, fromID, toID string) (engine.TracePath, error) {
	var path engine.TracePath
	body := map[string]string{"start_node": fromID, "end_node": toID}
	err := c.do(ctx, http.MethodPost, "/api/simulation/trace-path", body, &path)
	return path, err
}

// SetLinkStatus changes a link's status.
func (c *Client) SetLinkStatus(ctx context.Context, linkID string, status topology.LinkStatus) error {
	body := map[string]string{"status": string(status)}
	return c.do(ctx, http.MethodPost, "/api/links/"+url.PathEscape(linkID)+"/status", body, nil)
}

// SetDeviceStatus changes a device's status.
func (c *Client) SetDeviceStatus(ctx context.Context, deviceID string, status topology.DeviceStatus) error {
	body := map[string]string{"status": string(status)}
	return c.do(ctx, http.MethodPost, "/api/devices/"+url.PathEscape(deviceID)+"/status", body, nil)
}

// SetLinkUtilization stores a utilization percentage on a link.
func (c *Client) SetLinkUtilization(ctx context.Context, linkID string, percent float64) error {
	body := map[string]float64{"utilization": percent}
	return c.do(ctx, http.MethodPost, "/api/links/"+url.PathEscape(linkID)+"/utilization", body, nil)
}

// FiberCut simulates a fiber cut at a device.
func (c *Client) FiberCut(ctx context.Context, deviceID string) error {
	body := map[string]string{"node_id": deviceID}
	return c.do(ctx, http.MethodPost, "/api/simulation/fiber-cut", body, nil)
}

// Undo reverses the most recent simulation command.
func (c *Client) Undo(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/simulation/undo", nil, nil)
}

// Redo re-applies the most recently undone command.
func (c *Client) Redo(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/simulation/redo", nil, nil)
}

// SaveSnapshot persists the current server state under a name.
func (c *Client) SaveSnapshot(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/snapshot/save", map[string]string{"name": name}, nil)
}

// LoadSnapshot restores a named server state. On success the server
// broadcasts a fresh full snapshot; the caller does not need to pull.
func (c *Client) LoadSnapshot(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/snapshot/load", map[string]string{"name": name}, nil)
}
