// Package client is the typed HTTP transport to the Promptliano API. It
// classifies transport failures into the shared error taxonomy so upper
// layers can distinguish a canceled mutation from a failed one, and keeps the
// server's own error message intact for user-facing notifications.
package client

import (
	"bytes"
	"context"
	stderrors "errors"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"promptliano-client/internal/errors"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "promptliano-client/internal/client"

// Metrics is the observability surface of the transport.
type Metrics interface {
	RequestCompleted(method, path string, status int, duration time.Duration)
}

// envelope is the response wrapper the API uses for every endpoint.
type envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Client issues requests against one Promptliano server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	breakerCfg *BreakerConfig
	logger     *zap.Logger
	metrics    Metrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. The default carries a
// 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLogger sets the transport logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches an observability collector.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreaker wraps every request in a circuit breaker.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) { c.breakerCfg = &cfg }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Built after the options so the breaker logs through the configured
	// logger regardless of option order.
	if c.breakerCfg != nil {
		c.breaker = newBreaker(*c.breakerCfg, c.logger)
	}
	return c
}

// do executes one request and decodes the enveloped response into out (which
// may be nil for endpoints whose payload the caller discards).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	ctx, span := c.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	defer span.End()

	start := time.Now()
	status, err := c.roundTrip(ctx, method, path, query, body, out)
	if c.metrics != nil {
		c.metrics.RequestCompleted(method, path, status, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Error(err),
		)
		return err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, errors.NewInternal("failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, errors.NewInternal("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	execute := func() (*http.Response, error) {
		if c.breaker == nil {
			return c.httpClient.Do(req)
		}
		result, err := c.breaker.Execute(func() (any, error) {
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			// 5xx responses count against the breaker; 4xx are the caller's
			// problem, not the server's health.
			if resp.StatusCode >= 500 {
				return resp, fmt.Errorf("server returned %d", resp.StatusCode)
			}
			return resp, nil
		})
		if resp, ok := result.(*http.Response); ok {
			return resp, nil
		}
		return nil, err
	}

	resp, err := execute()
	if err != nil {
		return 0, c.classifyTransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.NewExternal(errors.CodeRequestFailed, "failed to read response body", err).WithOperation(op)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, c.classifyStatusError(op, resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return resp.StatusCode, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, (&errors.Error{
			Type: errors.ErrorTypeInternal, Code: errors.CodeDecodeFailed,
			Message: "failed to decode response", Operation: op, Cause: err,
		})
	}
	payload := env.Data
	if payload == nil {
		// Endpoint responded without the envelope; take the body as-is.
		payload = raw
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return resp.StatusCode, (&errors.Error{
			Type: errors.ErrorTypeInternal, Code: errors.CodeDecodeFailed,
			Message: "failed to decode response payload", Operation: op, Cause: err,
		})
	}
	return resp.StatusCode, nil
}

// classifyTransportError maps a failed round trip into the error taxonomy.
// Cancellation and timeout are kept distinct: an aborted mutation rolls back
// silently, a failed one notifies the user.
func (c *Client) classifyTransportError(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() == context.Canceled || stderrors.Is(err, context.Canceled):
		return errors.NewCanceled(op, err)
	case ctx.Err() == context.DeadlineExceeded || stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewTimeout(op, err)
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.NewExternal(errors.CodeCircuitOpen, "service temporarily unavailable", err).WithOperation(op)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeout(op, err)
	}
	return errors.NewExternal(errors.CodeRequestFailed, "request failed", err).WithOperation(op)
}

// classifyStatusError turns an HTTP error response into a classified error.
// The server's own message is preserved verbatim: it is what the user sees in
// a rollback notification.
func (c *Client) classifyStatusError(op string, status int, raw []byte) error {
	message := http.StatusText(status)
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		message = env.Error.Message
	}

	if status == http.StatusNotFound {
		return errors.NewNotFound("", message).WithOperation(op)
	}
	return errors.NewExternal(errors.CodeServerErrorResponse, message, nil).WithOperation(op)
}
