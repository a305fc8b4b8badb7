package seclai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// ListSources returns one page of source connections. opts may be nil.
func (c *Client) ListSources(ctx context.Context, opts *ListSourcesOptions) (*SourceList, error) {
	q := url.Values{}
	if opts != nil {
		setPositive(q, "page", opts.Page)
		setPositive(q, "limit", opts.Limit)
		setNonEmpty(q, "sort", opts.Sort)
		setNonEmpty(q, "order", opts.Order)
		setNonEmpty(q, "account_id", opts.AccountID)
	}

	var out SourceList
	if err := c.doJSON(ctx, http.MethodGet, "api/sources/", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFileToSource uploads the contents of r as fileName to a source
// connection. The file is buffered in memory; an empty file is rejected.
func (c *Client) UploadFileToSource(ctx context.Context, sourceConnectionID, fileName string, r io.Reader, opts *UploadOptions) (*FileUploadResponse, error) {
	if err := requireID("source connection id", sourceConnectionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidArgument)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidArgument)
	}

	var title, contentType string
	if opts != nil {
		title, contentType = opts.Title, opts.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if strings.TrimSpace(title) != "" {
		if err := mw.WriteField("title", title); err != nil {
			return nil, fmt.Errorf("seclai: write title field: %w", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set(headerContentType, contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("seclai: create file part: %w", err)
	}
	n, err := io.Copy(part, r)
	if err != nil {
		return nil, fmt.Errorf("seclai: read upload: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: file must be non-empty", ErrInvalidArgument)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("seclai: close multipart body: %w", err)
	}

	path := pathf("api/sources/%s/upload", sourceConnectionID)
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerContentType, mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seclai: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	var out FileUploadResponse
	if err := c.handleResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
