// Package gateway is the only way the console talks to the parking API.
// It attaches the session credential, tears the session down on 401, and
// unwraps the API's inconsistent response envelopes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vpms_console/internal/logger"
	"vpms_console/internal/metrics"
)

// Credentials supplies the bearer token and is told when the API rejects it.
type Credentials interface {
	Token() string
	// Expire is called with the token that drew a 401.
	Expire(ctx context.Context, rejected string)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	creds Credentials
}

func New(baseURL string, timeout time.Duration, l *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named(l, "gateway"),
	}
}

// SetCredentials wires the session store in after construction; the store
// itself needs a Client to log in.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

func (c *Client) credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type call struct {
	method string
	path   string
	route  string // path template used as the metrics label
	body   any
	public bool   // sent without the bearer credential
}

// do runs one request and returns the raw body of a 2xx answer.
func (c *Client) do(ctx context.Context, r call) (json.RawMessage, error) {
	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.method, r.route, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", r.method, r.route, err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	creds := c.credentials()
	token := ""
	if creds != nil && !r.public {
		token = creds.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRequest(r.method, r.route, 0, time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", r.method, r.route, err)
	}
	defer resp.Body.Close()
	metrics.ObserveRequest(r.method, r.route, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", r.method, r.route, err)
	}

	c.logger.Debug("api call",
		zap.String("request_id", reqID),
		zap.String("method", r.method),
		zap.String("route", r.route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized {
		if creds != nil {
			creds.Expire(context.WithoutCancel(ctx), token)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: serverMessage(raw), Method: r.method, Path: r.path}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: serverMessage(raw), Method: r.method, Path: r.path}
	}

	// The billing API reports some failures as {"success":false} with a 200.
	var status struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if isObject(raw) && json.Unmarshal(raw, &status) == nil && status.Success != nil && !*status.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: status.Message, Method: r.method, Path: r.path}
	}
	return raw, nil
}

func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
