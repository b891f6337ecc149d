package transport

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultRetryCount   = 3
	DefaultRetryWait    = time.Second
	DefaultRetryMaxWait = 10 * time.Second

	// RequestIDHeader carries a per-request correlation ID to the backend.
	RequestIDHeader = "X-Request-ID"
)

// Options configures a resty client. Zero values fall back to the defaults above;
// a negative RetryCount disables retries.
type Options struct {
	BaseURL      string
	UserAgent    string
	TLS          TLSPolicy
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Logger       *zap.SugaredLogger
}

// New returns a resty client that retries transport failures (connection refused,
// reset, TLS handshake errors) with exponential backoff. HTTP error statuses are
// never retried; they are returned to the caller for classification.
func New(opts Options) (*resty.Client, error) {
	tlsConfig, err := LoadTLSConfig(opts.TLS)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	c := resty.New().
		SetTLSClientConfig(tlsConfig).
		SetTimeout(durationOr(opts.Timeout, DefaultTimeout)).
		SetRetryCount(retryCount(opts.RetryCount)).
		SetRetryWaitTime(durationOr(opts.RetryWait, DefaultRetryWait)).
		SetRetryMaxWaitTime(durationOr(opts.RetryMaxWait, DefaultRetryMaxWait)).
		SetLogger(log).
		SetHeader("Accept", "application/json")
	if opts.BaseURL != "" {
		c.SetBaseURL(opts.BaseURL)
	}
	if opts.UserAgent != "" {
		c.SetHeader("User-Agent", opts.UserAgent)
	}

	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.SetHeader(RequestIDHeader, uuid.NewString())
		}
		return nil
	})
	c.AddRetryHook(func(resp *resty.Response, err error) {
		attempt := 0
		if resp != nil && resp.Request != nil {
			attempt = resp.Request.Attempt
		}
		log.Warnw("Retrying request after transport error", "attempt", attempt, "error", err)
	})
	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debugw("HTTP response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"requestID", resp.Request.Header.Get(RequestIDHeader),
			"duration", resp.Time())
		return nil
	})
	return c, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func retryCount(n int) int {
	switch {
	case n < 0:
		return 0
	case n == 0:
		return DefaultRetryCount
	default:
		return n
	}
}
