//go:build go1.23

package seclai

import (
	"context"
	"errors"
	"iter"
)

// All adapts a PageIterator to a range-over-func sequence. A fetch error
// is yielded once and ends the sequence.
func All[T any](it *PageIterator[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := it.Next()
			if errors.Is(err, Done) {
				return
			}
			if !yield(item, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// AllSources returns an iterator over every source connection.
// Use with Go 1.23+ for range syntax:
//
//	for src, err := range client.AllSources(ctx, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(src.Name)
//	}
func (c *Client) AllSources(ctx context.Context, opts *ListSourcesOptions) iter.Seq2[Source, error] {
	return All(c.Sources(ctx, opts))
}

// AllAgentRuns returns an iterator over every run of an agent.
func (c *Client) AllAgentRuns(ctx context.Context, agentID string, limit int) iter.Seq2[AgentRun, error] {
	return All(c.AgentRuns(ctx, agentID, limit))
}

// AllContentEmbeddings returns an iterator over every embedding of a
// content version.
func (c *Client) AllContentEmbeddings(ctx context.Context, versionID string, limit int) iter.Seq2[ContentEmbedding, error] {
	return All(c.ContentEmbeddings(ctx, versionID, limit))
}
