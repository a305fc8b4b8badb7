package seclai

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := newClient(Config{}, env(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "APIKey", ce.Field)
}

func TestNewClientBlankKeyFallsBackToEnv(t *testing.T) {
	c, err := newClient(Config{APIKey: "   "}, env(map[string]string{EnvAPIKey: " from-env "}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.apiKey)
}

func TestNewClientExplicitKeyWins(t *testing.T) {
	c, err := newClient(Config{APIKey: "explicit"}, env(map[string]string{EnvAPIKey: "from-env"}))
	require.NoError(t, err)
	assert.Equal(t, "explicit", c.apiKey)
}

func TestNewClientBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		env  map[string]string
		want string
	}{
		{"default", Config{APIKey: "k"}, nil, DefaultBaseURL},
		{"env", Config{APIKey: "k"}, map[string]string{EnvAPIURL: "https://staging.seclai.com"}, "https://staging.seclai.com"},
		{"relative env ignored", Config{APIKey: "k"}, map[string]string{EnvAPIURL: "staging"}, DefaultBaseURL},
		{"explicit trims slash", Config{APIKey: "k", BaseURL: "http://localhost:8080/"}, nil, "http://localhost:8080"},
		{"explicit with prefix", Config{APIKey: "k", BaseURL: "http://proxy/seclai"}, nil, "http://proxy/seclai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newClient(tt.cfg, env(tt.env))
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestNewClientRejectsRelativeBaseURL(t *testing.T) {
	_, err := newClient(Config{APIKey: "k", BaseURL: "/api"}, env(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestNewClientDefaults(t *testing.T) {
	c, err := newClient(Config{APIKey: "k"}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIKeyHeader, c.apiKeyHeader)
	assert.Equal(t, DefaultRetryPolicy(), c.retryPolicy)
	assert.NotNil(t, c.logger)
	assert.NotNil(t, c.tracer)
	assert.Nil(t, c.metrics)
	require.NotNil(t, c.HTTPClient())
	assert.Zero(t, c.HTTPClient().Timeout)
}

func TestNewClientOptions(t *testing.T) {
	hc := &http.Client{}
	c, err := NewClient(
		WithAPIKey("k"),
		WithBaseURL("http://example.test"),
		WithAPIKeyHeader("Authorization-Key"),
		WithHTTPClient(hc),
		WithRetryPolicy(NoRetry()),
		WithUserAgent("seclai-test/1.0"),
	)
	require.NoError(t, err)

	assert.Same(t, hc, c.HTTPClient())
	assert.Equal(t, "Authorization-Key", c.apiKeyHeader)
	assert.Equal(t, NoRetry(), c.retryPolicy)
	assert.Equal(t, "seclai-test/1.0", c.userAgent)
}

func TestResolveURL(t *testing.T) {
	c, err := newClient(Config{APIKey: "k", BaseURL: "http://proxy/seclai/"}, env(nil))
	require.NoError(t, err)

	got, err := c.resolveURL(pathf("api/agents/%s/runs", "a:b/c"), nil)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy/seclai/api/agents/a:b%2Fc/runs", got)

	got, err = c.resolveURL("api/sources/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy/seclai/api/sources/", got)
}
