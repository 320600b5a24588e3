package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tokenflight/pkg/swaperr"
)

const (
	// DefaultTimeout bounds synchronous requests
	DefaultTimeout = 15 * time.Second
	// DefaultStreamTimeout bounds a whole streaming quote response
	DefaultStreamTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response body is kept
	maxErrorBody = 64 << 10
)

// Client talks to the quoting, deposit and order backend
type Client struct {
	baseURL       string
	apiKey        string
	http          *http.Client
	timeout       time.Duration
	streamTimeout time.Duration
	limiter       *rate.Limiter
	metrics       *Metrics
	logger        *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithAPIKey sets the key sent in the X-API-Key header
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithDefaultTimeout overrides the timeout of synchronous requests
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithStreamTimeout overrides the timeout of streaming quote requests
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.streamTimeout = d
		}
	}
}

// WithRateLimit caps outgoing requests at perSecond with the given burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMetrics records request metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, swaperr.New(swaperr.MissingRequiredField, "api endpoint is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, swaperr.Newf(swaperr.InvalidConfig, "invalid api endpoint %q", baseURL)
	}

	c := &Client{
		baseURL:       baseURL,
		http:          &http.Client{},
		timeout:       DefaultTimeout,
		streamTimeout: DefaultStreamTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CallOption tunes a single request
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// WithTimeout overrides the timeout of one call
func WithTimeout(d time.Duration) CallOption {
	return func(cc *callConfig) { cc.timeout = d }
}

func applyCallOptions(def time.Duration, opts []CallOption) callConfig {
	cc := callConfig{timeout: def}
	for _, opt := range opts {
		opt(&cc)
	}
	return cc
}

// request describes one HTTP exchange
type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	accept    string
}

// send issues the request and returns the response for any status. The
// caller owns the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, translateTransport(ctx, err)
		}
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", r.operation, err)
		}
		body = bytes.NewReader(buf)
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.ApiRequestFailed, err, "failed to create request")
	}

	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug("api request", "operation", r.operation, "method", r.method, "path", r.path, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, translateTransport(ctx, err)
	}
	return resp, nil
}

// do runs a synchronous JSON exchange and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, r request, out any, opts []CallOption) (err error) {
	cc := applyCallOptions(c.timeout, opts)
	start := time.Now()
	defer func() { c.metrics.observe(r.operation, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return translateTransport(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(r.operation, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return swaperr.Wrap(swaperr.ApiInvalidResponse, err, fmt.Sprintf("failed to decode %s response", r.operation))
	}
	return nil
}

// translateTransport maps a failure to reach the backend onto the error
// taxonomy. Caller cancellation stays visible through errors.Is.
func translateTransport(ctx context.Context, err error) error {
	var se *swaperr.Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return swaperr.Wrap(swaperr.ApiTimeout, err, "request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return swaperr.Wrap(swaperr.ApiTimeout, err, "request timed out")
	}
	return swaperr.Wrap(swaperr.ApiRequestFailed, err, "request failed")
}

func statusError(operation string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	e := swaperr.Newf(swaperr.ApiRequestFailed, "%s failed", operation)
	e.Status = status
	e.Body = string(body)

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			e.Message = fmt.Sprintf("%s failed: %s", operation, payload.Message)
		case payload.Error != "":
			e.Message = fmt.Sprintf("%s failed: %s", operation, payload.Error)
		}
	}
	return e
}

// outcome is the metrics label for a call result
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := swaperr.CodeOf(err); ok {
		return strings.ToLower(string(code))
	}
	return "error"
}

func joinChainIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
