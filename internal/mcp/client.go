package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ashureev/vish/internal/metrics"
)

var (
	// ErrNotConnected is returned when a call is attempted before a
	// successful Connect or after a failed one.
	ErrNotConnected = errors.New("knowledge service not connected")
	// ErrRemoteCallFailed wraps transport errors, non-2xx responses,
	// malformed bodies and breaker rejections.
	ErrRemoteCallFailed = errors.New("knowledge service call failed")
	// ErrUnknownTool is returned for tool names outside KnownTools.
	ErrUnknownTool = errors.New("unknown tool")
)

// State is the client's connectivity.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

const (
	DefaultTimeout = 5 * time.Second
	maxBodyBytes   = 4 << 20
)

// Client talks to the knowledge service over HTTP. It never reconnects on its
// own: only Connect moves it between states.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	breaker *breaker

	state atomic.Int32
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	breaker    BreakerConfig
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithCallTimeout bounds every request.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBreaker overrides DefaultBreakerConfig.
func WithBreaker(cfg BreakerConfig) ClientOption {
	return func(o *clientOptions) { o.breaker = cfg }
}

// NewClient creates a disconnected client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	o := clientOptions{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
		breaker:    DefaultBreakerConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    o.httpClient,
		timeout: o.timeout,
		logger:  o.logger,
	}
	c.breaker = newBreaker(o.breaker, func(from, to gobreaker.State) {
		metrics.BreakerState.Set(breakerGauge(to))
		c.logger.Warn("knowledge service breaker state changed", "from", from.String(), "to", to.String())
	})
	return c
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string { return c.baseURL }

// State returns the current connectivity state.
func (c *Client) State() State { return State(c.state.Load()) }

// Available reports whether the client is connected and its breaker is not
// rejecting calls.
func (c *Client) Available() bool {
	return c.State() == StateConnected && !c.breaker.open()
}

// BreakerState returns "closed", "half-open" or "open".
func (c *Client) BreakerState() string { return c.breaker.state() }

// Connect probes GET /health. It is safe to call repeatedly.
func (c *Client) Connect(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var h Health
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &h)
	if err != nil {
		if c.setState(StateDisconnected) {
			c.logger.Warn("knowledge service not available, continuing without it", "url", c.baseURL, "error", err)
		}
		return false
	}
	if c.setState(StateConnected) {
		c.logger.Info("connected to knowledge service",
			"url", c.baseURL,
			"server", h.Server,
			"version", h.Version,
			"resources", h.Resources,
			"tools", h.Tools,
		)
	}
	return true
}

// Disconnect marks the client disconnected.
func (c *Client) Disconnect() {
	if c.setState(StateDisconnected) {
		c.logger.Info("disconnected from knowledge service", "url", c.baseURL)
	}
}

// setState stores s and reports whether it changed.
func (c *Client) setState(s State) bool {
	old := State(c.state.Swap(int32(s)))
	if s == StateConnected {
		metrics.RemoteConnected.Set(1)
	} else {
		metrics.RemoteConnected.Set(0)
	}
	return old != s
}

// InvokeTool calls a tool and returns its raw result.
func (c *Client) InvokeTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if !IsKnownTool(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	var out toolResult
	if err := c.call(ctx, name, http.MethodPost, "/mcp/tools/call", ToolCall{Name: name, Arguments: args}, &out); err != nil {
		return nil, err
	}
	if len(out.Result) == 0 || string(out.Result) == "null" {
		return nil, fmt.Errorf("%w: %s: empty result", ErrRemoteCallFailed, name)
	}
	return out.Result, nil
}

// ListTools returns the tools the service advertises.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var out toolList
	if err := c.call(ctx, "list_tools", http.MethodGet, "/mcp/tools", nil, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// ListResources returns the resource collections the service advertises.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	var out resourceList
	if err := c.call(ctx, "list_resources", http.MethodGet, "/mcp/resources", nil, &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

// ReadResource returns the content of a named resource collection.
func (c *Client) ReadResource(ctx context.Context, name string) (json.RawMessage, error) {
	var out resourceContent
	if err := c.call(ctx, "read_resource", http.MethodGet, "/mcp/resources/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return out.Content, nil
}

func (c *Client) call(ctx context.Context, callName, method, path string, body, out any) error {
	if c.State() != StateConnected {
		metrics.RemoteCalls.WithLabelValues(callName, "not_connected").Inc()
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.breaker.execute(func() ([]byte, error) {
		return c.do(ctx, method, path, body)
	})
	if err != nil {
		metrics.RemoteCalls.WithLabelValues(callName, "error").Inc()
		return fmt.Errorf("%w: %s: %w", ErrRemoteCallFailed, callName, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		metrics.RemoteCalls.WithLabelValues(callName, "malformed").Inc()
		return fmt.Errorf("%w: %s: decode response: %w", ErrRemoteCallFailed, callName, err)
	}
	metrics.RemoteCalls.WithLabelValues(callName, "ok").Inc()
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
