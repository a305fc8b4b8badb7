package seclai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Protocol header names
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerUserAgent   = "User-Agent"
	headerRequestID   = "X-Request-Id"
	headerRetryAfter  = "Retry-After"

	contentTypeJSON        = "application/json"
	contentTypeEventStream = "text/event-stream"
)

// resolveURL joins an escaped relative path onto the base URL.
func (c *Client) resolveURL(path string, query url.Values) (string, error) {
	// "./" keeps a segment such as "a:b" from parsing as a scheme.
	ref, err := url.Parse("./" + strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// newRequest builds an authenticated request against the API.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u, err := c.resolveURL(path, query)
	if err != nil {
		return nil, fmt.Errorf("seclai: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("seclai: create request: %w", err)
	}

	req.Header.Set(c.apiKeyHeader, c.apiKey)
	req.Header.Set(headerAccept, contentTypeJSON)
	if c.userAgent != "" {
		req.Header.Set(headerUserAgent, c.userAgent)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// doJSON sends an optional JSON body and decodes a JSON response into out.
// A nil out discards the response body. GET and DELETE are retried per the
// client's retry policy.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var encoded []byte
	if in != nil {
		var err error
		encoded, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("seclai: marshal request body: %w", err)
		}
	}

	makeRequest := func() (*http.Request, error) {
		var body io.Reader
		if encoded != nil {
			body = bytes.NewReader(encoded)
		}
		req, err := c.newRequest(ctx, method, path, query, body)
		if err != nil {
			return nil, err
		}
		if encoded != nil {
			req.Header.Set(headerContentType, contentTypeJSON)
		}
		return req, nil
	}

	var (
		resp *http.Response
		err  error
	)
	if method == http.MethodGet || method == http.MethodDelete {
		resp, err = c.doWithRetry(ctx, makeRequest)
	} else {
		resp, err = c.doOnce(makeRequest)
	}
	if err != nil {
		return fmt.Errorf("seclai: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, out)
}

func (c *Client) doOnce(makeRequest func() (*http.Request, error)) (*http.Response, error) {
	req, err := makeRequest()
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// handleResponse maps non-2xx responses to *APIError and decodes the rest.
func (c *Client) handleResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("seclai: read response body: %w", err)
	}
	c.metrics.observeRequest(resp.Request.Method, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.Request, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return &APIError{
			Method:     resp.Request.Method,
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Err:        errors.New("empty response body"),
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("seclai: decode %s %s response: %w", resp.Request.Method, resp.Request.URL.Path, err)
	}
	return nil
}

// newAPIError builds an *APIError, parsing 422 validation bodies.
func newAPIError(req *http.Request, statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(body)),
		Err:        errorFromStatus(statusCode),
	}

	if statusCode == http.StatusUnprocessableEntity && len(body) > 0 {
		// Ignore parse issues; the raw body is kept either way.
		if v, err := decodeJSON[HTTPValidationError](body); err == nil {
			apiErr.Validation = &v
		}
	}
	return apiErr
}

// pathf escapes each argument as a path segment and formats the path.
func pathf(format string, segments ...string) string {
	args := make([]any, len(segments))
	for i, s := range segments {
		args[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(format, args...)
}

// requireID rejects blank identifiers before any request is sent.
func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	return nil
}

// setPositive adds key=n to q when n > 0.
func setPositive(q url.Values, key string, n int) {
	if n > 0 {
		q.Set(key, strconv.Itoa(n))
	}
}

// setNonEmpty adds key=v to q when v is not blank.
func setNonEmpty(q url.Values, key, v string) {
	if strings.TrimSpace(v) != "" {
		q.Set(key, v)
	}
}
