// Package seclaitest provides testing utilities for Seclai API clients.
//
// # MockServer
//
// MockServer is an in-memory fake of the Seclai API, including the run
// stream endpoint. Script what the stream sends per agent:
//
//	func TestRun(t *testing.T) {
//	    server := seclaitest.NewMockServer()
//	    defer server.Close()
//
//	    server.SetStream("agent-1", seclaitest.Script{
//	        Frames: []string{
//	            seclaitest.Event("init", `{"run_id":"r1","status":"queued"}`),
//	            seclaitest.Event("done", `{"run_id":"r1","output":"ok"}`),
//	        },
//	        ChunkSize: 3,
//	    })
//
//	    client, _ := seclai.NewClient(
//	        seclai.WithAPIKey("test"),
//	        seclai.WithBaseURL(server.URL()),
//	    )
//	    state, err := client.StreamAgentRun(ctx, "agent-1", seclai.AgentRunStreamRequest{})
//	    // ...
//	}
//
// # MockTransport
//
// MockTransport is an http.RoundTripper that returns queued responses, for
// testing client behavior such as retries without a server:
//
//	transport := seclaitest.NewMockTransport()
//	transport.AddJSONResponse(500, map[string]any{}, nil)
//	transport.AddJSONResponse(200, map[string]any{"run_id": "r1"}, nil)
//
//	client, _ := seclai.NewClient(
//	    seclai.WithAPIKey("test"),
//	    seclai.WithHTTPClient(&http.Client{Transport: transport}),
//	)
package seclaitest
