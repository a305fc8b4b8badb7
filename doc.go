// Package seclai provides a Go client for the Seclai API.
//
// The API has plain request/response endpoints for sources, agent runs and
// content, and one Server-Sent Events endpoint that reports the progress of
// an agent run until it finishes.
//
// # Basic Usage
//
// Create a client. The API key falls back to $SECLAI_API_KEY:
//
//	client, err := seclai.NewClient(seclai.WithAPIKey("sk-..."))
//
// Start a run and wait for its outcome:
//
//	state, err := client.StreamAgentRun(ctx, agentID,
//	    seclai.AgentRunStreamRequest{Input: "hello"},
//	    seclai.WithStreamTimeout(time.Minute),
//	    seclai.WithProgress(func(s seclai.RunState) {
//	        log.Println("status:", s.Status)
//	    }))
//	if err != nil {
//	    return err
//	}
//	if state.Status == seclai.RunStatusFailed {
//	    return errors.New(state.Error)
//	}
//	fmt.Println(state.Output)
//
// Walk a paginated listing:
//
//	for run, err := range client.AllAgentRuns(ctx, agentID, 50) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(run.RunID, run.Status)
//	}
//
// # Error Handling
//
// Non-2xx responses are *APIError values wrapping a status sentinel:
//
//	if errors.Is(err, seclai.ErrNotFound) {
//	    // Handle 404
//	}
//
// A run stream that ends without a terminal event returns a *StreamError
// whose kind matches one of ErrStreamTimeout, ErrStreamCancelled,
// ErrStreamIncomplete, ErrStreamMalformed or ErrStreamTransport:
//
//	var se *seclai.StreamError
//	if errors.As(err, &se) && se.Kind == seclai.StreamTimeout {
//	    fmt.Println("gave up after", se.Elapsed)
//	}
//
// A run that the server reports as failed is not an error: the returned
// RunState has Status RunStatusFailed and Error set.
package seclai
