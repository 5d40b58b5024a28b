package transport

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	RequestIDHeader      = "X-Request-ID"
	IdempotencyKeyHeader = "Idempotency-Key"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
)

// Options describes one backend call. Body is JSON-encoded; Multipart takes
// precedence when both are set.
type Options struct {
	Query     url.Values
	Body      any
	Multipart *Multipart
	Headers   http.Header
}

// Gateway performs authenticated calls against the backend.
type Gateway interface {
	Request(ctx context.Context, method, path string, opts Options) (*Envelope, error)
}

// Client is the HTTP Gateway implementation.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTokenProvider sets the bearer credential source.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) { c.tokens = p }
}

// WithRateLimit throttles outgoing requests. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request sends one call and returns its envelope. A nil error means the
// envelope reported success.
func (c *Client) Request(ctx context.Context, method, path string, opts Options) (*Envelope, error) {
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	req, err := c.newRequest(ctx, method, path, opts)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("backend unreachable")
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug().
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend call")

	return decodeResponse(method, path, resp.StatusCode, raw)
}

func (c *Client) newRequest(ctx context.Context, method, path string, opts Options) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case opts.Multipart != nil:
		buf, ct, err := opts.Multipart.encode()
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case opts.Body != nil:
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		rid := RequestIDFromContext(ctx)
		if rid == "" {
			rid = uuid.NewString()
		}
		req.Header.Set(RequestIDHeader, rid)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtain token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func decodeResponse(method, path string, status int, raw []byte) (*Envelope, error) {
	ok := status >= 200 && status < 300

	if len(bytes.TrimSpace(raw)) == 0 {
		if ok {
			return &Envelope{Success: true}, nil
		}
		return nil, &ApplicationError{Status: status, Message: statusMessage(status)}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if ok {
			return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("decode envelope: %w", err)}
		}
		return nil, &ApplicationError{Status: status, Message: statusMessage(status)}
	}

	if !env.Success {
		fallback := DefaultErrorMessage
		if !ok {
			fallback = statusMessage(status)
		}
		return &env, &ApplicationError{Status: status, Message: ExtractMessage(&env, fallback), Envelope: &env}
	}
	return &env, nil
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return DefaultErrorMessage
}

type requestIDKey struct{}

// ContextWithRequestID attaches the console request id so backend calls made
// while serving it carry the same X-Request-ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
