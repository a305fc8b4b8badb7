package seclai

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ClientOption configures a Client.
type ClientOption func(*Config)

// WithAPIKey sets the API key.
// If not set, $SECLAI_API_KEY is used.
func WithAPIKey(key string) ClientOption {
	return func(cfg *Config) {
		cfg.APIKey = key
	}
}

// WithBaseURL sets the API root, e.g. "https://seclai.com".
// If not set, $SECLAI_API_URL or DefaultBaseURL is used.
func WithBaseURL(url string) ClientOption {
	return func(cfg *Config) {
		cfg.BaseURL = url
	}
}

// WithAPIKeyHeader sets the header name carrying the API key.
// Default is "x-api-key".
func WithAPIKeyHeader(name string) ClientOption {
	return func(cfg *Config) {
		cfg.APIKeyHeader = name
	}
}

// WithHTTPClient replaces the default pooled client, e.g. to add
// instrumentation or a proxy.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *Config) {
		cfg.HTTPClient = c
	}
}

// WithLogger sets the logger used for request and stream diagnostics.
func WithLogger(l *zap.Logger) ClientOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy. Use NoRetry to disable.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(cfg *Config) {
		cfg.RetryPolicy = &p
	}
}

// WithMetrics records request and stream outcomes into m.
func WithMetrics(m *Metrics) ClientOption {
	return func(cfg *Config) {
		cfg.Metrics = m
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for stream spans.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(cfg *Config) {
		cfg.TracerProvider = tp
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cfg *Config) {
		cfg.UserAgent = ua
	}
}

// RetryPolicy controls how GET and DELETE calls are repeated after a
// connection error, a 429 or a 5xx. Waits after a status are jittered
// between zero and the current backoff, and never shorter than the
// server's Retry-After.
type RetryPolicy struct {
	MaxRetries   int           // additional attempts after the first
	InitialDelay time.Duration // first backoff
	MaxDelay     time.Duration // backoff ceiling; 0 means none
	Multiplier   float64       // backoff growth per attempt
}

// DefaultRetryPolicy is 3 retries, backing off from 100ms by 2x up to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// NoRetry disables retries.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

type streamConfig struct {
	timeout        time.Duration
	deadline       time.Time
	onProgress     func(RunState)
	headers        map[string]string
	maxFrameBuffer int
}

// StreamOption configures a StreamAgentRun call.
type StreamOption func(*streamConfig)

// WithStreamTimeout bounds the whole call, from request to terminal event.
// When the timeout fires the connection is closed, even mid-read.
func WithStreamTimeout(d time.Duration) StreamOption {
	return func(cfg *streamConfig) {
		cfg.timeout = d
	}
}

// WithStreamDeadline bounds the call by an absolute time.
// Combined with WithStreamTimeout, the earlier one applies.
func WithStreamDeadline(t time.Time) StreamOption {
	return func(cfg *streamConfig) {
		cfg.deadline = t
	}
}

// WithProgress registers fn to receive a copy of the run state after every
// event that changed it, including the terminal one. fn runs on the
// streaming goroutine; a slow fn delays reading.
func WithProgress(fn func(RunState)) StreamOption {
	return func(cfg *streamConfig) {
		cfg.onProgress = fn
	}
}

// WithStreamHeaders sets custom headers for the stream request.
func WithStreamHeaders(headers map[string]string) StreamOption {
	return func(cfg *streamConfig) {
		cfg.headers = headers
	}
}

// WithMaxFrameBuffer caps the bytes a single undelivered event may use.
// Exceeding it fails the stream as malformed.
func WithMaxFrameBuffer(n int) StreamOption {
	return func(cfg *streamConfig) {
		cfg.maxFrameBuffer = n
	}
}

// PageOptions selects a page of a paginated listing. Zero values are
// omitted and the server defaults apply.
type PageOptions struct {
	Page  int
	Limit int
}

// ListSourcesOptions filters ListSources.
type ListSourcesOptions struct {
	Page      int
	Limit     int
	Sort      string
	Order     string
	AccountID string
}

// ContentRangeOptions selects a character range of content text.
type ContentRangeOptions struct {
	Start int
	End   int
}

// UploadOptions configures UploadFileToSource.
type UploadOptions struct {
	// Title is an optional display title.
	Title string

	// ContentType of the file part. Default "application/octet-stream".
	ContentType string
}
