package seclai

import (
	"context"
	"net/http"
	"net/url"
)

// RunAgent starts a run and returns immediately with its initial record.
// Use StreamAgentRun to wait for the outcome.
func (c *Client) RunAgent(ctx context.Context, agentID string, req AgentRunRequest) (*AgentRun, error) {
	if err := requireID("agent id", agentID); err != nil {
		return nil, err
	}

	var out AgentRun
	if err := c.doJSON(ctx, http.MethodPost, pathf("api/agents/%s/runs", agentID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAgentRuns returns one page of an agent's runs. opts may be nil.
func (c *Client) ListAgentRuns(ctx context.Context, agentID string, opts *PageOptions) (*AgentRunList, error) {
	if err := requireID("agent id", agentID); err != nil {
		return nil, err
	}

	var out AgentRunList
	if err := c.doJSON(ctx, http.MethodGet, pathf("api/agents/%s/runs", agentID), pageQuery(opts), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAgentRun fetches a single run.
func (c *Client) GetAgentRun(ctx context.Context, agentID, runID string) (*AgentRun, error) {
	return c.agentRun(ctx, http.MethodGet, agentID, runID)
}

// DeleteAgentRun cancels or removes a run and returns its last record.
func (c *Client) DeleteAgentRun(ctx context.Context, agentID, runID string) (*AgentRun, error) {
	return c.agentRun(ctx, http.MethodDelete, agentID, runID)
}

func (c *Client) agentRun(ctx context.Context, method, agentID, runID string) (*AgentRun, error) {
	if err := requireID("agent id", agentID); err != nil {
		return nil, err
	}
	if err := requireID("run id", runID); err != nil {
		return nil, err
	}

	var out AgentRun
	if err := c.doJSON(ctx, method, pathf("api/agents/%s/runs/%s", agentID, runID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func pageQuery(opts *PageOptions) url.Values {
	q := url.Values{}
	if opts != nil {
		setPositive(q, "page", opts.Page)
		setPositive(q, "limit", opts.Limit)
	}
	return q
}
