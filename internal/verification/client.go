// Package verification calls the customer chat-verification service that
// issues and checks one-time codes.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/omnitrix-widget/internal/observability/metrics"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

const (
	DefaultBaseURL = "https://omnitrix.servicesmanagement.us"
	defaultTimeout = 15 * time.Second

	EndpointInitiateChat = "initiate-chat"
	EndpointResendOTP    = "resend-otp"
	EndpointVerifyOTP    = "verify-otp"
)

// APIError is returned for non-2xx responses and transport failures.
// Status is 0 when no response was received.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("verification: %s: request failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("verification: %s returned %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// InitiateChatRequest starts a verified chat for a registered user.
type InitiateChatRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Response is the decoded JSON body of a successful call.
type Response map[string]any

// Client wraps the customer verification endpoints. No call is retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.WidgetMetrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithMetrics(m *metrics.WidgetMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient constructs a verification client rooted at baseURL.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		tracer:     otel.Tracer("omnitrix.internal.verification"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client posts to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InitiateChat registers the user and triggers an OTP delivery.
func (c *Client) InitiateChat(ctx context.Context, req InitiateChatRequest) (Response, error) {
	return c.post(ctx, EndpointInitiateChat, req)
}

// ResendOTP asks the service to send a fresh code.
func (c *Client) ResendOTP(ctx context.Context, email string) (Response, error) {
	return c.post(ctx, EndpointResendOTP, resendRequest{Email: email})
}

// VerifyOTP checks a code entered by the user.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (Response, error) {
	return c.post(ctx, EndpointVerifyOTP, verifyRequest{Email: email, OTP: otp})
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.tracer.Start(ctx, "verification."+endpoint)
	defer span.End()
	span.SetAttributes(attribute.String("omnitrix.verification.endpoint", endpoint))

	start := time.Now()
	out, status, err := c.doJSON(ctx, endpoint, body)
	c.metrics.ObserveVerification(endpoint, status, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint string, body any) (Response, int, error) {
	path := "/api/v1/customer/" + endpoint

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, &APIError{Endpoint: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &APIError{Endpoint: endpoint, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("verification request failed", "endpoint", endpoint, "error", err)
		return nil, 0, &APIError{Endpoint: endpoint, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &APIError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("verification API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return nil, resp.StatusCode, &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(respBody)}
	}

	out := Response{}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return out, resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, resp.StatusCode, &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, resp.StatusCode, nil
}
