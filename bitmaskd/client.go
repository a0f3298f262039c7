// Package bitmaskd talks to the bitmask backend daemon over its HTTP API.
//
// Every command is a POST to /API/<service>/<command> whose body is a JSON
// array of string parameters. Requests carry the application token in the
// X-Bitmask-Auth header. Every response is a JSON envelope:
//
//	{"error": <string or null>, "result": <any>}
//
// Client implements vpn.Backend, so a vpn.Controller can drive the daemon
// directly. EventSource long-polls the daemon's event queue and republishes
// the notifications on a vpn.EventBus.
package bitmaskd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

const (
	apiPrefix       = "/API/"
	authHeader      = "X-Bitmask-Auth"
	maxResponseSize = 1 << 20 // 1MB
)

// Client is an HTTP client for the bitmask daemon.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request. Zero leaves deadlines to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a client for the daemon at baseURL using token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = common.DefaultBackendURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{},
		timeout:    common.RequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the daemon's response wrapper.
type envelope struct {
	Error  *string         `json:"error"`
	Result json.RawMessage `json:"result"`
}

// call runs command (e.g. "vpn/check") with params and decodes the result
// into out when out is non-nil. Daemon-reported errors are returned as
// *vpn.BackendError classified by kind.
func (c *Client) call(ctx context.Context, command string, out any, params ...string) error {
	return c.do(ctx, command, out, c.timeout, params...)
}

// do is call with an explicit timeout. Long polls pass zero.
func (c *Client) do(ctx context.Context, command string, out any, timeout time.Duration, params ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if params == nil {
		params = []string{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+command, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(authHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return vpn.NewBackendError(command, common.ErrNetwork, fmt.Sprintf("request %s: %v", command, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return vpn.NewBackendError(command, common.ErrNetwork, fmt.Sprintf("reading %s response: %v", command, err))
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return vpn.NewBackendError(command, common.ErrAuth, strings.TrimSpace(string(data)))
	}
	if resp.StatusCode >= 400 {
		return vpn.NewBackendError(command, common.ErrNetwork,
			fmt.Sprintf("%s failed with status %d", command, resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding %s response: %w", command, err)
	}
	hasResult := len(env.Result) > 0 && string(env.Result) != "null"
	// The daemon copies a status's own error field into the envelope; the
	// status is still a valid answer.
	if env.Error != nil && *env.Error != "" && !(command == cmdStatus && hasResult) {
		return classify(command, *env.Error)
	}
	if out == nil || !hasResult {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", command, err)
	}
	return nil
}

// classify maps a daemon error message to one of the vpn error kinds.
func classify(command, msg string) error {
	lower := strings.ToLower(msg)
	var kind error
	switch {
	case strings.Contains(lower, "missing vpn certificate"):
		kind = common.ErrMissingCertificate
	case strings.Contains(lower, "nopolkit"), strings.Contains(lower, "polkit agent"):
		kind = common.ErrPolicyAgentMissing
	case strings.Contains(lower, "not running"), strings.Contains(lower, "not started"),
		strings.Contains(lower, "no vpn running"):
		kind = common.ErrNotRunning
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "not authenticated"),
		strings.Contains(lower, "invalid credentials"):
		kind = common.ErrAuth
	default:
		kind = commandKind(command)
	}
	return vpn.NewBackendError(command, kind, msg)
}

// commandKind is the error kind a command fails with when the message says
// nothing more specific.
func commandKind(command string) error {
	switch command {
	case cmdStart:
		return common.ErrStart
	case cmdInstall:
		return common.ErrInstall
	case cmdEnable:
		return common.ErrEnable
	case cmdGetCert:
		return common.ErrAuth
	default:
		return common.ErrNetwork
	}
}
