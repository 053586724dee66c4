// Package client is a small HTTP client for the buddyd API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"buddyd/pkg/types"
)

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Client talks to a running daemon.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for addr, which may be a bare host:port.
func New(addr string) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	// Start blocks until the model server is ready, so no client-wide timeout.
	return &Client{base: base, http: &http.Client{Timeout: 0}}
}

// Base returns the normalized base URL.
func (c *Client) Base() string { return c.base }

func (c *Client) Start(ctx context.Context, slot, modelPath string, gpuLayers *int) (types.MessageResponse, error) {
	var out types.MessageResponse
	err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(slot)+"/start", types.StartRequest{ModelPath: modelPath, GPULayers: gpuLayers}, &out)
	return out, err
}

func (c *Client) Stop(ctx context.Context, slot string) (types.MessageResponse, error) {
	var out types.MessageResponse
	err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(slot)+"/stop", nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, slot string) (bool, error) {
	var out types.StatusResponse
	err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(slot)+"/status", nil, &out)
	return out.IsRunning, err
}

func (c *Client) LastModel(ctx context.Context, slot string) (string, error) {
	var out types.LastModelResponse
	err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(slot)+"/lastModel", nil, &out)
	return out.LastModel, err
}

func (c *Client) Slots(ctx context.Context) (types.SlotsResponse, error) {
	var out types.SlotsResponse
	err := c.do(ctx, http.MethodGet, "/slots", nil, &out)
	return out, err
}

func (c *Client) Models(ctx context.Context, slot string) (types.ModelsResponse, error) {
	var out types.ModelsResponse
	err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(slot)+"/models", nil, &out)
	return out, err
}

func (c *Client) Usage(ctx context.Context, slot string) (types.UsageResponse, error) {
	var out types.UsageResponse
	err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(slot)+"/usage", nil, &out)
	return out, err
}

func (c *Client) Settings(ctx context.Context, keys ...string) (map[string]string, error) {
	path := "/settings"
	if len(keys) > 0 {
		path += "?keys=" + url.QueryEscape(strings.Join(keys, ","))
	}
	out := map[string]string{}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) SetSettings(ctx context.Context, values map[string]string) (map[string]string, error) {
	out := map[string]string{}
	err := c.do(ctx, http.MethodPut, "/settings", values, &out)
	return out, err
}

// WaitHealthy polls /healthz until it answers 200 or ctx ends.
func (c *Client) WaitHealthy(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
		if err != nil {
			return err
		}
		if resp, err := c.http.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var er types.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &er) != nil || er.Error == "" {
			er.Error = strings.TrimSpace(string(raw))
		}
		return &Error{Status: resp.StatusCode, Message: er.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
