package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/guest-quantum/guestctl/pkg/guestctl/transport"
)

type Client struct {
	http      *resty.Client
	token     string
	transport transport.Options
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		transport: transport.Options{UserAgent: "guestctl"},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.transport.BaseURL == "" {
		return nil, errors.New("server is required")
	}
	httpClient, err := transport.New(c.transport)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		httpClient.SetAuthToken(c.token)
	}
	c.http = httpClient
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("invalid server %q: scheme must be http or https", server)
		}
		c.transport.BaseURL = strings.TrimRight(server, "/")
		return nil
	}
}

func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.transport.UserAgent = userAgent
		return nil
	}
}

func WithTLSPolicy(policy transport.TLSPolicy) Option {
	return func(c *Client) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		c.transport.TLS = policy
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return errors.New("timeout cannot be negative")
		}
		c.transport.Timeout = timeout
		return nil
	}
}

// WithRetry sets how often transport failures are retried; a negative count
// disables retries.
func WithRetry(count int, wait, maxWait time.Duration) Option {
	return func(c *Client) error {
		c.transport.RetryCount = count
		c.transport.RetryWait = wait
		c.transport.RetryMaxWait = maxWait
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		c.transport.Logger = log
		return nil
	}
}

func (c *Client) BaseURL() string {
	return c.transport.BaseURL
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.request(ctx, body).Execute(method, endpoint)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	if resp.StatusCode() >= 400 {
		return decodeError(resp.StatusCode(), resp.Status(), resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, body any) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	return req
}

func decodeError(status int, statusText string, body []byte) error {
	var apiErr struct {
		Error   string `json:"error"`
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		if detail, ok := apiErr.Detail.(string); ok {
			msg = strings.TrimSpace(detail)
		} else if apiErr.Detail != nil {
			encoded, _ := json.Marshal(apiErr.Detail)
			msg = string(encoded)
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = statusText
	}
	return &HTTPError{StatusCode: status, Message: msg}
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}
