package seclai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclai/seclai-go/seclaitest"
)

func TestPageIteratorWalksAllPages(t *testing.T) {
	server := seclaitest.NewMockServer()
	defer server.Close()
	for i := range 5 {
		server.AddRun("agent-1", map[string]any{"run_id": fmt.Sprintf("r%d", i), "status": "completed"})
	}
	c := newTestClient(t, server)

	it := c.AgentRuns(context.Background(), "agent-1", 2)
	var ids []string
	for {
		run, err := it.Next()
		if errors.Is(err, Done) {
			break
		}
		require.NoError(t, err)
		ids = append(ids, run.RunID)
	}

	assert.Equal(t, []string{"r0", "r1", "r2", "r3", "r4"}, ids)
	assert.Len(t, server.Requests(), 3)
	assert.Equal(t, 3, it.Pagination.Page)

	// Done is sticky
	_, err := it.Next()
	assert.ErrorIs(t, err, Done)
	assert.Len(t, server.Requests(), 3)
}

func TestPageIteratorStickyError(t *testing.T) {
	server := seclaitest.NewMockServer()
	defer server.Close()
	server.FailNext(http.StatusForbidden, `{"detail":"no"}`, "")
	c := newTestClient(t, server)

	it := c.Sources(context.Background(), nil)
	_, err := it.Next()
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = it.Next()
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Len(t, server.Requests(), 1)
}

func TestPageIteratorStopsOnEmptyPage(t *testing.T) {
	calls := 0
	it := newPageIterator(context.Background(), 0, func(ctx context.Context, page int) ([]int, Pagination, error) {
		calls++
		return nil, Pagination{Page: page, HasNext: true}, nil
	})

	_, err := it.Next()
	assert.ErrorIs(t, err, Done)
	assert.Equal(t, 1, calls)
}

func TestAllSources(t *testing.T) {
	server := seclaitest.NewMockServer()
	defer server.Close()
	for i := range 3 {
		server.AddSource(map[string]any{"id": fmt.Sprintf("s%d", i), "account_id": "00000000-0000-0000-0000-000000000000"})
	}
	c := newTestClient(t, server)

	var ids []string
	for src, err := range c.AllSources(context.Background(), &ListSourcesOptions{Limit: 2, Order: "asc"}) {
		require.NoError(t, err)
		ids = append(ids, src.ID)
	}
	assert.Equal(t, []string{"s0", "s1", "s2"}, ids)

	reqs := server.Requests()
	require.Len(t, reqs, 2)
	q, _ := url.ParseQuery(reqs[1].Query)
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "asc", q.Get("order"))
}

func TestAllContentEmbeddingsStopsEarly(t *testing.T) {
	server := seclaitest.NewMockServer()
	defer server.Close()
	var embeddings []map[string]any
	for i := range 10 {
		embeddings = append(embeddings, map[string]any{"id": fmt.Sprintf("e%d", i), "vector": []float64{}})
	}
	server.SetEmbeddings("v1", embeddings)
	c := newTestClient(t, server)

	n := 0
	for _, err := range c.AllContentEmbeddings(context.Background(), "v1", 3) {
		require.NoError(t, err)
		n++
		if n == 4 {
			break
		}
	}
	assert.Equal(t, 4, n)
	assert.Len(t, server.Requests(), 2)
}

func TestAllAgentRunsYieldsErrorOnce(t *testing.T) {
	server := seclaitest.NewMockServer()
	defer server.Close()
	c := newTestClient(t, server)

	var errs []error
	for _, err := range c.AllAgentRuns(context.Background(), " ", 10) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidArgument)
}
