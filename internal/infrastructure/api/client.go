package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/circuitbreaker"
	apperrors "roomlink/pkg/errors"
	"roomlink/pkg/logger"
	"roomlink/pkg/retry"
	"roomlink/pkg/tracing"
	"roomlink/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Retry          retry.Config
	CircuitBreaker circuitbreaker.Config
	UserAgent      string
}

// Client talks to the room service REST API. It implements ports.AuthAPI,
// ports.RoomAPI, ports.AdminAPI and ports.AnalyticsAPI.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retryCfg   retry.Config
	tokens     ports.TokenSource
	metrics    ports.Metrics
	logger     *zap.SugaredLogger
}

var (
	_ ports.AuthAPI      = (*Client)(nil)
	_ ports.RoomAPI      = (*Client)(nil)
	_ ports.AdminAPI     = (*Client)(nil)
	_ ports.AnalyticsAPI = (*Client)(nil)
)

func NewClient(cfg Config, metrics ports.Metrics, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "roomlink-client"
	}

	breakerCfg := cfg.CircuitBreaker
	breakerCfg.IsFailure = countsAgainstBreaker

	retryCfg := cfg.Retry
	retryCfg.ShouldRetry = isRetryable

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker:  circuitbreaker.New(breakerCfg),
		retryCfg: retryCfg,
		metrics:  metrics,
		logger:   log,
	}

	c.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		log.Warnw("api circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return c
}

// SetTokenSource wires the session store in after construction; the store
// itself depends on this client for login.
func (c *Client) SetTokenSource(tokens ports.TokenSource) {
	c.tokens = tokens
}

// request describes one API call. route is the templated path used for
// metrics and spans, path the concrete one.
type request struct {
	method string
	route  string
	path   string
	body   interface{}
	auth   bool
	out    interface{}
}

func (c *Client) do(ctx context.Context, r request) error {
	op := r.method + " " + r.route

	var token string
	if r.auth {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return domain.NewAuthError(domain.AuthNoSession, nil)
		}
	}

	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s body: %w", op, err)
		}
	}

	attempt := func() (struct{}, error) {
		return circuitbreaker.Call(c.breaker, func() (struct{}, error) {
			return struct{}{}, c.roundTrip(ctx, op, r, token, payload)
		})
	}

	var err error
	if r.method == http.MethodGet {
		_, err = retry.Do(ctx, c.withRetryLogging(op), attempt)
	} else {
		_, err = attempt()
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		return &domain.NetworkError{Op: op, Cause: err}
	}
	if r.auth && isUnauthorized(err) && c.tokens != nil {
		c.tokens.Invalidate(ctx, err)
	}
	return err
}

func (c *Client) withRetryLogging(op string) retry.Config {
	cfg := c.retryCfg
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warnw("retrying api request",
			"op", op,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
	}
	return cfg
}

func (c *Client) roundTrip(ctx context.Context, op string, r request, token string, payload []byte) (err error) {
	ctx, span := tracing.TraceHTTPRequest(ctx, r.method, r.route)
	defer func() { tracing.End(span, err) }()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}

	requestID := utils.NewRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, 0)
		c.logger.Debugw("api request failed",
			"op", op,
			"request_id", requestID,
			"error", err,
		)
		return &domain.NetworkError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.record(op, resp.StatusCode)
		return &domain.NetworkError{Op: op, Status: resp.StatusCode, Cause: err}
	}

	c.record(op, resp.StatusCode)
	tracing.AddSpanAttributes(ctx, tracing.StatusCodeKey.Int(resp.StatusCode))
	c.logger.Debugw("api request",
		"op", op,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(op, r, apperrors.FromResponse(op, resp.StatusCode, data))
	}

	if r.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, r.out); err != nil {
		return &domain.NetworkError{Op: op, Status: resp.StatusCode, Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) record(op string, status int) {
	if c.metrics != nil {
		c.metrics.RecordRequest(op, status)
	}
}

// classify maps a non-2xx response onto the domain error taxonomy.
func classify(op string, r request, apiErr *apperrors.APIError) error {
	switch apiErr.HTTPStatus {
	case http.StatusUnauthorized:
		if !r.auth {
			return domain.NewAuthError(domain.AuthInvalidCredentials, apiErr)
		}
		return domain.NewAuthError(domain.AuthTokenInvalid, apiErr)
	case http.StatusForbidden:
		if !r.auth {
			return domain.NewAuthError(domain.AuthInvalidCredentials, apiErr)
		}
		return &domain.NetworkError{Op: op, Status: apiErr.HTTPStatus, Cause: errors.Join(domain.ErrNotPermitted, apiErr)}
	}
	return &domain.NetworkError{Op: op, Status: apiErr.HTTPStatus, Cause: apiErr}
}

func isUnauthorized(err error) bool {
	var ae *domain.AuthError
	return errors.As(err, &ae) && ae.Reason == domain.AuthTokenInvalid
}

// countsAgainstBreaker: only transport failures and server errors mean the
// service is unhealthy. Client errors and auth failures do not.
func countsAgainstBreaker(err error) bool {
	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return ne.Status == 0 || ne.Status >= 500
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	if ne.Status == 0 {
		return true
	}
	if apiErr := apperrors.GetAPIError(err); apiErr != nil {
		return apiErr.Temporary()
	}
	return false
}
