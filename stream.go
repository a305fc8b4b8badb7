package seclai

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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed handshake body is kept.
const maxErrorBody = 64 << 10

// StreamAgentRun starts a run of agentID and waits for it to finish,
// following its progress over Server-Sent Events.
//
// On a done or error event it returns the folded RunState; a run that
// failed server-side is returned with Status RunStatusFailed and a nil
// error. A non-2xx handshake returns an *APIError. Every other failure is
// a *StreamError, and no partial state is returned with it.
//
// Example:
//
//	state, err := client.StreamAgentRun(ctx, agentID,
//	    seclai.AgentRunStreamRequest{Input: "summarize"},
//	    seclai.WithStreamTimeout(2*time.Minute))
//	if errors.Is(err, seclai.ErrStreamTimeout) {
//	    // give up
//	}
func (c *Client) StreamAgentRun(ctx context.Context, agentID string, req AgentRunStreamRequest, opts ...StreamOption) (*RunState, error) {
	if err := requireID("agent id", agentID); err != nil {
		return nil, err
	}

	var cfg streamConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	requestID := uuid.NewString()
	logger := c.logger.With(zap.String("agent_id", agentID), zap.String("request_id", requestID))

	ctx, span := c.tracer.Start(ctx, "seclai.StreamAgentRun",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("seclai.agent_id", agentID),
			attribute.String("seclai.request_id", requestID),
		))
	defer span.End()

	sessionCtx, budget, cancel := cfg.sessionContext(ctx, start)
	defer cancel()

	state, err := c.streamRun(sessionCtx, agentID, requestID, req, cfg, logger)
	elapsed := time.Since(start)

	if err != nil {
		outcome := "error"
		var se *StreamError
		if errors.As(err, &se) {
			se.AgentID = agentID
			se.RequestID = requestID
			if se.Kind == StreamTimeout || se.Kind == StreamCancelled {
				se.Timeout = budget
				se.Elapsed = elapsed
			}
			outcome = se.Kind.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.metrics.observeSession(outcome, elapsed)
		logger.Debug("run stream failed", zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}

	outcome := state.Status.String()
	span.SetAttributes(
		attribute.String("seclai.run_id", state.RunID),
		attribute.String("seclai.run_status", outcome),
	)
	c.metrics.observeSession(outcome, elapsed)
	logger.Debug("run stream finished",
		zap.String("run_id", state.RunID),
		zap.String("status", outcome),
		zap.Int("attempts", len(state.Attempts)),
		zap.Duration("elapsed", elapsed))
	return &state, nil
}

// streamRun performs the handshake and hands the body to a session.
func (c *Client) streamRun(ctx context.Context, agentID, requestID string, body AgentRunStreamRequest, cfg streamConfig, logger *zap.Logger) (RunState, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return RunState{}, fmt.Errorf("seclai: marshal request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathf("api/agents/%s/runs/stream", agentID), nil, bytes.NewReader(encoded))
	if err != nil {
		return RunState{}, err
	}
	req.Header.Set(headerAccept, contentTypeEventStream)
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerRequestID, requestID)
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RunState{}, classify(ctx, err)
	}
	c.metrics.observeRequest(req.Method, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return RunState{}, newAPIError(req, resp.StatusCode, data)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(strings.ToLower(contentType), contentTypeEventStream) {
		resp.Body.Close()
		return RunState{}, &StreamError{
			Kind: StreamTransport,
			Err:  fmt.Errorf("%w: %q", ErrUnexpectedContentType, contentType),
		}
	}

	logger.Debug("run stream opened", zap.Int("status", resp.StatusCode))
	return newSession(resp.Body, cfg, c.metrics, logger).run(ctx)
}

// sessionContext derives the context bounding the whole call. The earlier
// of the timeout and the deadline applies; budget is the time allowed
// from start, counting a caller deadline when that is earlier still.
func (cfg streamConfig) sessionContext(ctx context.Context, start time.Time) (context.Context, time.Duration, context.CancelFunc) {
	deadline := cfg.deadline
	if cfg.timeout > 0 {
		if d := start.Add(cfg.timeout); deadline.IsZero() || d.Before(deadline) {
			deadline = d
		}
	}

	budget := time.Duration(0)
	if !deadline.IsZero() {
		budget = deadline.Sub(start)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		budget = d.Sub(start)
	}

	if deadline.IsZero() {
		return ctx, budget, func() {}
	}
	sessionCtx, cancel := context.WithDeadlineCause(ctx, deadline, errSessionDeadline)
	return sessionCtx, budget, cancel
}
