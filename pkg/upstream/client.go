// Package upstream is ilagent's one concrete collaborator outside the
// pipeline: a thin HTTP client for the incident-management API, covering
// event delivery, heartbeat pings, and the alert listing/resolve calls
// the cleanup command needs.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ilert/ilagent/pkg/model"
)

const defaultEventPath = "/events"

// Response is the normalized shape every upstream call returns: the HTTP
// status (0 on network failure), and the raw body for error logging.
type Response struct {
	Status int
	Body   []byte
}

// Client talks to the upstream incident-management API. It holds no
// mutable state beyond its http.Client, so it is safe for concurrent use
// by multiple goroutines and can be shared by reference across consumers.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client pointed at baseURL (e.g. "https://api.ilert.com/api").
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// SendEvent posts a canonical event to <base><path or event_api_path>.
func (c *Client) SendEvent(ctx context.Context, event model.EventJSON, path string) (Response, error) {
	if path == "" {
		path = defaultEventPath
	}
	body, err := json.Marshal(event)
	if err != nil {
		return Response{}, fmt.Errorf("upstream: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// PingHeartbeat issues GET <base>/heartbeats/<key>.
func (c *Client) PingHeartbeat(ctx context.Context, key string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/heartbeats/"+url.PathEscape(key), nil)
	if err != nil {
		return Response{}, fmt.Errorf("upstream: build request: %w", err)
	}
	return c.do(req)
}

// Alert is the subset of an upstream alert listing this agent cares about.
type Alert struct {
	ID int64 `json:"id"`
}

// ListAlerts fetches one page of open alerts, used by the cleanup command.
func (c *Client) ListAlerts(ctx context.Context, skip, limit int) ([]Alert, Response, error) {
	q := url.Values{}
	q.Add("states", "PENDING")
	q.Add("states", "ACCEPTED")
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/alerts?"+q.Encode(), nil)
	if err != nil {
		return nil, Response{}, fmt.Errorf("upstream: build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, resp, err
	}
	if resp.Status != http.StatusOK {
		return nil, resp, nil
	}

	var alerts []Alert
	if err := json.Unmarshal(resp.Body, &alerts); err != nil {
		return nil, resp, fmt.Errorf("upstream: decode alerts: %w", err)
	}
	return alerts, resp, nil
}

// ResolveAlert issues PUT <base>/alerts/<id>/resolve.
func (c *Client) ResolveAlert(ctx context.Context, id int64) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/alerts/%d/resolve", c.baseURL, id), nil)
	if err != nil {
		return Response{}, fmt.Errorf("upstream: build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{Status: resp.StatusCode}, err
	}

	return Response{Status: resp.StatusCode, Body: body}, nil
}
