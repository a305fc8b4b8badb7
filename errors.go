package seclai

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for common conditions.
var (
	// Done is returned by page iterators when iteration is complete.
	// Check with errors.Is(err, seclai.Done).
	Done = errors.New("seclai: no more items in iterator")

	// ErrMissingAPIKey indicates no API key was configured or found in the
	// environment.
	ErrMissingAPIKey = errors.New("seclai: missing API key: provide WithAPIKey or set " + EnvAPIKey)

	// ErrInvalidArgument indicates a required argument was empty or invalid.
	ErrInvalidArgument = errors.New("seclai: invalid argument")

	// ErrNotFound indicates the resource does not exist (404).
	ErrNotFound = errors.New("seclai: not found")

	// ErrUnauthorized indicates a missing or rejected API key (401).
	ErrUnauthorized = errors.New("seclai: unauthorized")

	// ErrForbidden indicates the key lacks access to the resource (403).
	ErrForbidden = errors.New("seclai: forbidden")

	// ErrValidation indicates the request failed server-side validation (422).
	ErrValidation = errors.New("seclai: validation failed")

	// ErrRateLimited indicates rate limiting (429).
	ErrRateLimited = errors.New("seclai: rate limited")

	// ErrServer indicates a server-side failure (5xx).
	ErrServer = errors.New("seclai: server error")

	// ErrUnexpectedContentType indicates the stream endpoint answered with
	// something other than text/event-stream.
	ErrUnexpectedContentType = errors.New("seclai: unexpected content type")
)

// Stream failure kinds. Match with errors.Is against a *StreamError.
var (
	ErrStreamTransport  = errors.New("seclai: stream transport failure")
	ErrStreamIncomplete = errors.New("seclai: stream ended before a terminal event")
	ErrStreamMalformed  = errors.New("seclai: malformed stream payload")
	ErrStreamTimeout    = errors.New("seclai: stream timed out")
	ErrStreamCancelled  = errors.New("seclai: stream cancelled")
)

// ValidationError is a single entry in a 422 response.
type ValidationError struct {
	Loc  []any  `json:"loc,omitempty"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// HTTPValidationError is the body of a 422 response.
type HTTPValidationError struct {
	Detail []ValidationError `json:"detail"`
}

// APIError describes a non-2xx response from a request/response endpoint,
// including the handshake of the run stream.
type APIError struct {
	// Method and URL of the failed request.
	Method string
	URL    string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the raw response body, if any.
	Body string

	// Validation is the parsed body of a 422 response.
	Validation *HTTPValidationError

	// Err is the status sentinel (ErrNotFound, ErrValidation, ...).
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("seclai: api error (%d) %s %s: %s", e.StatusCode, e.Method, e.URL, e.Body)
	}
	return fmt.Sprintf("seclai: api error (%d) %s %s", e.StatusCode, e.Method, e.URL)
}

// Unwrap returns the status sentinel for errors.Is support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// errorFromStatus maps HTTP status codes to sentinel errors.
func errorFromStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case statusCode == http.StatusForbidden:
		return ErrForbidden
	case statusCode == http.StatusUnprocessableEntity:
		return ErrValidation
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode >= 500:
		return ErrServer
	default:
		return fmt.Errorf("unexpected status code: %d", statusCode)
	}
}

// StreamErrorKind classifies why a run stream ended without a terminal event.
type StreamErrorKind int

const (
	// StreamTransport means the connection failed or a read returned an
	// I/O error.
	StreamTransport StreamErrorKind = iota + 1

	// StreamIncomplete means the server closed the stream cleanly before
	// sending done or error.
	StreamIncomplete

	// StreamMalformed means a terminal event carried an unparseable payload.
	StreamMalformed

	// StreamTimeout means the deadline elapsed first.
	StreamTimeout

	// StreamCancelled means the caller's context was cancelled first.
	StreamCancelled
)

// String returns a short name for the kind.
func (k StreamErrorKind) String() string {
	switch k {
	case StreamTransport:
		return "transport"
	case StreamIncomplete:
		return "incomplete"
	case StreamMalformed:
		return "malformed"
	case StreamTimeout:
		return "timeout"
	case StreamCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("StreamErrorKind(%d)", int(k))
	}
}

func (k StreamErrorKind) sentinel() error {
	switch k {
	case StreamTransport:
		return ErrStreamTransport
	case StreamIncomplete:
		return ErrStreamIncomplete
	case StreamMalformed:
		return ErrStreamMalformed
	case StreamTimeout:
		return ErrStreamTimeout
	case StreamCancelled:
		return ErrStreamCancelled
	default:
		return nil
	}
}

// StreamError is returned by StreamAgentRun when the stream ends without a
// terminal event or with an unusable one. No partial RunState is returned
// alongside it.
type StreamError struct {
	Kind StreamErrorKind

	// AgentID is the agent the run was started for.
	AgentID string

	// RunID is the run id, if an event carrying it was seen.
	RunID string

	// RequestID is the X-Request-Id sent with the stream request.
	RequestID string

	// Event and Payload hold the offending frame for StreamMalformed.
	Event   string
	Payload string

	// Timeout is the configured budget and Elapsed the time spent, for
	// StreamTimeout and StreamCancelled.
	Timeout time.Duration
	Elapsed time.Duration

	// Err is the underlying cause. It is context.DeadlineExceeded for
	// timeouts and context.Canceled (or the cancel cause) for cancellation.
	Err error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	target := e.AgentID
	if e.RunID != "" {
		target = e.AgentID + "/" + e.RunID
	}

	switch e.Kind {
	case StreamTimeout:
		return fmt.Sprintf("seclai: stream %s timed out after %s (limit %s)",
			target, e.Elapsed.Round(time.Millisecond), e.Timeout)
	case StreamCancelled:
		return fmt.Sprintf("seclai: stream %s cancelled after %s: %v",
			target, e.Elapsed.Round(time.Millisecond), e.Err)
	case StreamIncomplete:
		return fmt.Sprintf("seclai: stream %s ended before a terminal event", target)
	case StreamMalformed:
		return fmt.Sprintf("seclai: stream %s: malformed %q payload: %v", target, e.Event, e.Err)
	default:
		return fmt.Sprintf("seclai: stream %s failed: %v", target, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, e.g. errors.Is(err, ErrStreamTimeout).
func (e *StreamError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited reports whether err is a 429 from the API.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsStreamTimeout reports whether err is a run stream that hit its deadline.
func IsStreamTimeout(err error) bool {
	return errors.Is(err, ErrStreamTimeout)
}
