package seclai

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Configuration defaults and environment variables.
const (
	DefaultBaseURL      = "https://seclai.com"
	DefaultAPIKeyHeader = "x-api-key"

	EnvAPIKey = "SECLAI_API_KEY"
	EnvAPIURL = "SECLAI_API_URL"
)

// Config holds everything needed to construct a Client.
// Zero fields fall back to the environment and then to defaults; see New.
type Config struct {
	// APIKey authenticates every request. Falls back to $SECLAI_API_KEY.
	APIKey string

	// BaseURL is the API root. Falls back to $SECLAI_API_URL when that is
	// an absolute URL, then to DefaultBaseURL.
	BaseURL string

	// APIKeyHeader is the header carrying the key. Default "x-api-key".
	APIKeyHeader string

	// HTTPClient overrides the default pooled client.
	HTTPClient *http.Client

	// Logger receives debug and warning output. Default is a no-op logger.
	Logger *zap.Logger

	// RetryPolicy applies to idempotent request/response calls. The run
	// stream is never retried.
	RetryPolicy *RetryPolicy

	// Metrics, when set, records request and stream outcomes.
	Metrics *Metrics

	// TracerProvider supplies the tracer for stream spans. Default is the
	// global OpenTelemetry provider.
	TracerProvider trace.TracerProvider

	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

// resolve applies environment fallbacks and defaults.
func (cfg Config) resolve(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(getenv(EnvAPIKey))
	}
	if cfg.APIKey == "" {
		return cfg, &ConfigError{Field: "APIKey", Err: ErrMissingAPIKey}
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		if env := strings.TrimSpace(getenv(EnvAPIURL)); isAbsoluteURL(env) {
			cfg.BaseURL = env
		} else {
			cfg.BaseURL = DefaultBaseURL
		}
	}
	if !isAbsoluteURL(cfg.BaseURL) {
		return cfg, &ConfigError{Field: "BaseURL", Err: ErrInvalidArgument}
	}

	if strings.TrimSpace(cfg.APIKeyHeader) == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg, nil
}

func isAbsoluteURL(v string) bool {
	if v == "" {
		return false
	}
	u, err := url.Parse(v)
	return err == nil && u.IsAbs() && u.Host != ""
}

// ConfigError reports an unusable Config field.
type ConfigError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "seclai: config " + e.Field + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
