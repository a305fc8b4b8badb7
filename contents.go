package seclai

import (
	"context"
	"net/http"
	"net/url"
)

// GetContentDetail fetches a content version. opts selects a text window
// and may be nil.
func (c *Client) GetContentDetail(ctx context.Context, versionID string, opts *ContentRangeOptions) (*ContentDetail, error) {
	if err := requireID("content version id", versionID); err != nil {
		return nil, err
	}

	q := url.Values{}
	if opts != nil {
		setPositive(q, "start", opts.Start)
		setPositive(q, "end", opts.End)
	}

	var out ContentDetail
	if err := c.doJSON(ctx, http.MethodGet, pathf("api/contents/%s", versionID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteContent deletes a content version.
func (c *Client) DeleteContent(ctx context.Context, versionID string) error {
	if err := requireID("content version id", versionID); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, pathf("api/contents/%s", versionID), nil, nil, nil)
}

// ListContentEmbeddings returns one page of embeddings for a content version.
func (c *Client) ListContentEmbeddings(ctx context.Context, versionID string, opts *PageOptions) (*ContentEmbeddingList, error) {
	if err := requireID("content version id", versionID); err != nil {
		return nil, err
	}

	var out ContentEmbeddingList
	if err := c.doJSON(ctx, http.MethodGet, pathf("api/contents/%s/embeddings", versionID), pageQuery(opts), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
