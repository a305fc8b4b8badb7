package seclai

import (
	"context"
)

// pageFetcher loads one page of a listing.
type pageFetcher[T any] func(ctx context.Context, page int) ([]T, Pagination, error)

// PageIterator walks a paginated listing one item at a time, fetching the
// next page when the current one is exhausted. Call Next() in a loop until
// it returns Done.
//
// Example:
//
//	it := client.Sources(ctx, nil)
//	for {
//	    src, err := it.Next()
//	    if errors.Is(err, seclai.Done) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(src.Name)
//	}
//
// A PageIterator is not safe for concurrent use.
type PageIterator[T any] struct {
	ctx   context.Context
	fetch pageFetcher[T]
	page  int
	items []T
	pos   int
	done  bool
	err   error

	// Pagination is the metadata of the most recently fetched page.
	Pagination Pagination
}

func newPageIterator[T any](ctx context.Context, firstPage int, fetch pageFetcher[T]) *PageIterator[T] {
	if firstPage < 1 {
		firstPage = 1
	}
	return &PageIterator[T]{ctx: ctx, fetch: fetch, page: firstPage}
}

// Next returns the next item. It returns Done after the last item and
// keeps returning the first fetch error once one occurs.
func (it *PageIterator[T]) Next() (T, error) {
	var zero T
	for it.pos >= len(it.items) {
		if it.err != nil {
			return zero, it.err
		}
		if it.done {
			return zero, Done
		}

		items, p, err := it.fetch(it.ctx, it.page)
		if err != nil {
			it.err = err
			return zero, err
		}
		it.Pagination = p
		it.items, it.pos = items, 0
		it.page++
		// An empty page ends the walk even if the server claims more.
		if !p.HasNext || len(items) == 0 {
			it.done = true
		}
	}

	item := it.items[it.pos]
	it.pos++
	return item, nil
}

// Sources iterates over every source connection. opts.Page, when set, is
// the first page fetched.
func (c *Client) Sources(ctx context.Context, opts *ListSourcesOptions) *PageIterator[Source] {
	var base ListSourcesOptions
	if opts != nil {
		base = *opts
	}
	return newPageIterator(ctx, base.Page, func(ctx context.Context, page int) ([]Source, Pagination, error) {
		o := base
		o.Page = page
		list, err := c.ListSources(ctx, &o)
		if err != nil {
			return nil, Pagination{}, err
		}
		return list.Data, list.Pagination, nil
	})
}

// AgentRuns iterates over every run of an agent, limit per page.
func (c *Client) AgentRuns(ctx context.Context, agentID string, limit int) *PageIterator[AgentRun] {
	return newPageIterator(ctx, 1, func(ctx context.Context, page int) ([]AgentRun, Pagination, error) {
		list, err := c.ListAgentRuns(ctx, agentID, &PageOptions{Page: page, Limit: limit})
		if err != nil {
			return nil, Pagination{}, err
		}
		return list.Data, list.Pagination, nil
	})
}

// ContentEmbeddings iterates over every embedding of a content version,
// limit per page.
func (c *Client) ContentEmbeddings(ctx context.Context, versionID string, limit int) *PageIterator[ContentEmbedding] {
	return newPageIterator(ctx, 1, func(ctx context.Context, page int) ([]ContentEmbedding, Pagination, error) {
		list, err := c.ListContentEmbeddings(ctx, versionID, &PageOptions{Page: page, Limit: limit})
		if err != nil {
			return nil, Pagination{}, err
		}
		return list.Data, list.Pagination, nil
	})
}
