// Package api is the client of the loan portfolio backend.
//
// Every call attaches the bearer token when there is one, and classifies the
// response into the error taxonomy of package loandash. Nothing is retried:
// retrying is the caller's decision.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/etnz/loandash"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the client settings.
type Config struct {
	BaseURL string        // backend root, like "http://localhost:8000"
	Timeout time.Duration // per request, when the context has no earlier deadline
	// RateLimit caps outgoing requests per second, zero disables the limiter.
	RateLimit float64
	Burst     int
}

// Client calls the backend. It is safe for concurrent use.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	metrics *Metrics
	logger  *zap.Logger
}

// New returns a client. logger and metrics may be nil.
func New(cfg Config, logger *zap.Logger, metrics *Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		http: &fasthttp.Client{
			Name:                "ldash",
			MaxResponseBodySize: 64 << 20,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		metrics: metrics,
		logger:  logger.Named("api"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// request describes one call.
type request struct {
	operation   string // metrics and logs label
	method      string
	path        string // with its query string
	token       string
	contentType string
	body        []byte
}

// response is a copy of the response, detached from the fasthttp pools.
type response struct {
	status      int
	contentType string
	body        []byte
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// do executes req. The only error it returns is a *loandash.NetworkError,
// status classification is left to the caller.
func (c *Client) do(ctx context.Context, r request) (response, error) {
	start := time.Now()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.observe(r.operation, outcomeNetwork, start)
			return response{}, &loandash.NetworkError{Operation: r.operation, Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		c.observe(r.operation, outcomeNetwork, start)
		return response{}, &loandash.NetworkError{Operation: r.operation, Err: err}
	}

	requestID := uuid.NewString()
	uri := c.baseURL + r.path

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(uri)
	req.Header.SetMethod(r.method)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.body != nil {
		req.Header.SetContentType(r.contentType)
		req.SetBody(r.body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := start.Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.logger.Debug("request", zap.String("operation", r.operation), zap.String("method", r.method),
		zap.String("uri", uri), zap.String("requestID", requestID))

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("request failed", zap.String("operation", r.operation), zap.String("uri", uri),
			zap.String("requestID", requestID), zap.Error(err))
		c.observe(r.operation, outcomeNetwork, start)
		if errors.Is(err, fasthttp.ErrTimeout) && ctx.Err() != nil {
			err = ctx.Err()
		}
		return response{}, &loandash.NetworkError{Operation: r.operation, Err: err}
	}

	out := response{
		status:      resp.StatusCode(),
		contentType: string(resp.Header.ContentType()),
		body:        append([]byte(nil), resp.Body()...),
	}
	c.logger.Debug("response", zap.String("operation", r.operation), zap.Int("statusCode", out.status),
		zap.Int("size", len(out.body)), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// getJSON runs a GET expected to return a JSON document into v.
//
// A 401 is loandash.ErrUnauthorized, any other non-2xx and an undecodable body
// are a *loandash.ServerError.
func (c *Client) getJSON(ctx context.Context, operation, path, token string, v any) error {
	start := time.Now()
	resp, err := c.do(ctx, request{operation: operation, method: fasthttp.MethodGet, path: path, token: token})
	if err != nil {
		return err
	}
	if err := c.classify(operation, resp, start); err != nil {
		return err
	}
	if err := decode(resp.body, v); err != nil {
		c.observe(operation, outcomeDecode, start)
		return &loandash.ServerError{Operation: operation, Status: resp.status, Err: err}
	}
	c.observe(operation, outcomeOK, start)
	return nil
}

// classify converts a non-2xx status into an error, recording its outcome.
func (c *Client) classify(operation string, resp response, start time.Time) error {
	switch {
	case resp.ok():
		return nil
	case resp.status == fasthttp.StatusUnauthorized:
		c.observe(operation, outcomeUnauthorized, start)
		return fmt.Errorf("%s: %w", operation, loandash.ErrUnauthorized)
	default:
		c.logger.Warn("backend error", zap.String("operation", operation), zap.Int("statusCode", resp.status),
			zap.ByteString("responseBody", truncate(resp.body, 512)))
		c.observe(operation, outcomeServer, start)
		return &loandash.ServerError{Operation: operation, Status: resp.status, Err: messageError(resp.body)}
	}
}

// decode unmarshals data into v, using the ordered decoder for snapshots.
func decode(data []byte, v any) error {
	if s, ok := v.(**loandash.Snapshot); ok {
		snapshot, err := loandash.DecodeSnapshot(data)
		if err != nil {
			return err
		}
		*s = snapshot
		return nil
	}
	return json.Unmarshal(data, v)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
