package seclai

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/seclai/seclai-go"

// Client is a Seclai API client. It is safe for concurrent use.
//
// The default transport pools connections and bounds dialing and TLS
// setup, but sets no response or overall timeout: a run stream may stay
// open for minutes and is bounded only by its context and stream options.
type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	apiKey       string
	apiKeyHeader string
	userAgent    string
	retryPolicy  RetryPolicy
	logger       *zap.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

// NewClient creates a new Seclai client from options.
//
// Example:
//
//	client, err := seclai.NewClient(seclai.WithAPIKey("sk-..."))
func NewClient(opts ...ClientOption) (*Client, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

// New creates a client from an explicit Config.
// The API key falls back to $SECLAI_API_KEY, the base URL to
// $SECLAI_API_URL and then DefaultBaseURL. Returns ErrMissingAPIKey
// (wrapped in a *ConfigError) when no key is available.
func New(cfg Config) (*Client, error) {
	return newClient(cfg, nil)
}

func newClient(cfg Config, getenv func(string) string) (*Client, error) {
	cfg, err := cfg.resolve(getenv)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, &ConfigError{Field: "BaseURL", Err: err}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport()}
	}

	retryPolicy := DefaultRetryPolicy()
	if cfg.RetryPolicy != nil {
		retryPolicy = *cfg.RetryPolicy
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Client{
		httpClient:   httpClient,
		baseURL:      base,
		apiKey:       cfg.APIKey,
		apiKeyHeader: cfg.APIKeyHeader,
		userAgent:    cfg.UserAgent,
		retryPolicy:  retryPolicy,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		tracer:       tp.Tracer(instrumentationName),
	}, nil
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return strings.TrimSuffix(c.baseURL.String(), "/")
}

// HTTPClient returns the HTTP client requests are sent with.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// newTransport is the pooled transport used when no HTTPClient is given.
func newTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
