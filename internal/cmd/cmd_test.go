package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	seclai "github.com/seclai/seclai-go"
	"github.com/seclai/seclai-go/internal/config"
	"github.com/seclai/seclai-go/seclaitest"
)

type testApp struct {
	app    *cli.App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newTestApp returns an app with ExitErrHandler suppressed so errors are
// returned instead of calling os.Exit. The user config dir is isolated.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("SECLAI_API_KEY", "")
	t.Setenv("SECLAI_API_URL", "")

	ta := &testApp{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	ta.app = NewApp("test")
	ta.app.Writer = ta.stdout
	ta.app.ErrWriter = ta.stderr
	ta.app.ExitErrHandler = func(*cli.Context, error) {}
	return ta
}

func (ta *testApp) run(args ...string) error {
	return ta.app.Run(append([]string{"seclai"}, args...))
}

func serverArgs(ms *seclaitest.MockServer, journalPath string) []string {
	return []string{"--api-key", "sk-test", "--base-url", ms.URL(), "--journal", journalPath}
}

func runWithServer(t *testing.T, ms *seclaitest.MockServer, journalPath string, args ...string) (*testApp, error) {
	t.Helper()
	ta := newTestApp(t)
	return ta, ta.run(append(serverArgs(ms, journalPath), args...)...)
}

func decodeOutput[T any](t *testing.T, ta *testApp) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ta.stdout.Bytes(), &v), "stdout: %s", ta.stdout.String())
	return v
}

func TestSourcesList(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()
	ms.RequireAPIKey("sk-test")
	ms.AddSource(map[string]any{"id": "src-1", "name": "Docs"})
	ms.AddSource(map[string]any{"id": "src-2", "name": "Blog"})

	ta, err := runWithServer(t, ms, "", "sources", "list", "--limit", "1")
	require.NoError(t, err)

	list := decodeOutput[seclai.SourceList](t, ta)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "src-1", list.Data[0].ID)

	ta, err = runWithServer(t, ms, "", "sources", "list", "--all", "--limit", "1")
	require.NoError(t, err)
	all := decodeOutput[[]seclai.Source](t, ta)
	require.Len(t, all, 2)
	assert.Equal(t, "src-2", all[1].ID)
}

func TestYAMLFormat(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()
	ms.AddSource(map[string]any{"id": "src-1", "name": "Docs"})

	ta, err := runWithServer(t, ms, "", "--format", "yaml", "sources", "list")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "name: Docs")
	assert.Contains(t, ta.stdout.String(), "pagination:")
}

func TestMissingAPIKey(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()

	ta := newTestApp(t)
	err := ta.run("--base-url", ms.URL(), "sources", "list")
	require.Error(t, err)
	assert.Equal(t, exitError, ExitCode(err))
	assert.Contains(t, err.Error(), "SECLAI_API_KEY")
}

func TestAPIErrorExitCode(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()

	_, err := runWithServer(t, ms, "", "runs", "get", "--agent", "a1", "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, exitError, ExitCode(err))
	assert.Contains(t, err.Error(), "404")
}

func TestRunLifecycle(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()

	ta, err := runWithServer(t, ms, "", "runs", "start", "--agent", "a1", "--input", "hello", "--priority", "--metadata", "team=search")
	require.NoError(t, err)
	run := decodeOutput[seclai.AgentRun](t, ta)
	assert.Equal(t, "run-1", run.RunID)

	req, ok := ms.LastRequest()
	require.True(t, ok)
	assert.JSONEq(t, `{"input":"hello","metadata":{"team":"search"},"priority":true}`, string(req.Body))

	ta, err = runWithServer(t, ms, "", "runs", "list", "--agent", "a1")
	require.NoError(t, err)
	list := decodeOutput[seclai.AgentRunList](t, ta)
	require.Len(t, list.Data, 1)

	ta, err = runWithServer(t, ms, "", "runs", "delete", "--agent", "a1", "--run", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", decodeOutput[seclai.AgentRun](t, ta).Status)
}

func TestContentsCommands(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()
	ms.AddContent("cv-1", "hello world")
	ms.SetEmbeddings("cv-1", []map[string]any{{"text": "hello", "vector": []float64{0.5}}})

	ta, err := runWithServer(t, ms, "", "contents", "get", "--id", "cv-1", "--start", "0", "--end", "5")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "hello")

	ta, err = runWithServer(t, ms, "", "contents", "embeddings", "--id", "cv-1", "--all")
	require.NoError(t, err)
	assert.Len(t, decodeOutput[[]seclai.ContentEmbedding](t, ta), 1)

	_, err = runWithServer(t, ms, "", "contents", "delete", "--id", "cv-1")
	require.NoError(t, err)
	assert.False(t, ms.Contents("cv-1"))
}

func TestUpload(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0o600))

	ta, err := runWithServer(t, ms, "", "upload", "--source", "src-1", "--file", path, "--title", "Notes", "--content-type", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", decodeOutput[seclai.FileUploadResponse](t, ta).Filename)

	uploads := ms.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "src-1", uploads[0].SourceID)
	assert.Equal(t, "Notes", uploads[0].Title)
	assert.Equal(t, "text/plain", uploads[0].ContentType)
	assert.Equal(t, "some notes", string(uploads[0].Data))

	_, err = runWithServer(t, ms, "", "upload", "--source", "src-1", "--file", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, exitError, ExitCode(err))
}

func completedStream(output string) seclaitest.Script {
	return seclaitest.Script{Frames: []string{
		seclaitest.Event("init", `{"run_id":"run-9","status":"queued"}`),
		seclaitest.Event("status", `{"status":"processing"}`),
		seclaitest.Event("done", fmt.Sprintf(`{"run_id":"run-9","status":"completed","output":%q}`, output)),
	}}
}

func TestStreamRecordsJournal(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()
	ms.SetStream("a1", completedStream("42"))

	journalPath := filepath.Join(t.TempDir(), "journal.db")

	ta, err := runWithServer(t, ms, journalPath, "runs", "stream", "--agent", "a1", "--input", "q1", "--input", "q2", "--metadata", "k=v")
	require.NoError(t, err)

	results := decodeOutput[[]streamResult](t, ta)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, []string{"q1", "q2"}[i], r.Input)
		assert.Equal(t, "completed", r.Outcome)
		require.NotNil(t, r.State)
		assert.Equal(t, "42", r.State.Output)
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", r.JournalID.String())
	}
	assert.Contains(t, ta.stderr.String(), "run-9 completed")

	ta, err = runWithServer(t, ms, journalPath, "runs", "history")
	require.NoError(t, err)
	history := decodeOutput[[]map[string]any](t, ta)
	require.Len(t, history, 2)
	assert.Equal(t, "run-9", history[0]["run_id"])
	assert.Equal(t, "completed", history[0]["outcome"])

	ta, err = runWithServer(t, ms, journalPath, "runs", "history", "--id", results[0].JournalID.String())
	require.NoError(t, err)
	assert.Equal(t, "q1", decodeOutput[map[string]any](t, ta)["input"])
}

func TestStreamQuiet(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()
	ms.SetStream("a1", completedStream("ok"))

	ta, err := runWithServer(t, ms, "", "runs", "stream", "--agent", "a1", "--input", "q", "--quiet")
	require.NoError(t, err)
	assert.Empty(t, ta.stderr.String())
}

func TestStreamExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		script  seclaitest.Script
		args    []string
		code    int
		outcome string
	}{
		{
			name: "run failed",
			script: seclaitest.Script{Frames: []string{
				seclaitest.Event("init", `{"run_id":"run-1"}`),
				seclaitest.Event("error", `{"error":"boom"}`),
			}},
			code:    exitRunFailed,
			outcome: "failed",
		},
		{
			name: "run failed with plain text error",
			script: seclaitest.Script{Frames: []string{
				seclaitest.Event("init", `{"run_id":"run-1"}`),
				seclaitest.Event("error", `worker crashed`),
			}},
			code:    exitRunFailed,
			outcome: "failed",
		},
		{
			name: "timeout",
			script: seclaitest.Script{
				Frames: []string{seclaitest.Event("init", `{"run_id":"run-1"}`)},
				Hang:   true,
			},
			args:    []string{"--timeout", "100ms"},
			code:    exitTimeout,
			outcome: "timeout",
		},
		{
			name:    "incomplete",
			script:  seclaitest.Script{Frames: []string{seclaitest.Event("init", `{"run_id":"run-1"}`)}},
			code:    exitError,
			outcome: "incomplete",
		},
		{
			name:    "malformed",
			script:  seclaitest.Script{Frames: []string{seclaitest.Event("done", `not json`)}},
			code:    exitError,
			outcome: "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := seclaitest.NewMockServer()
			defer ms.Close()
			ms.SetStream("a1", tt.script)

			args := append([]string{"runs", "stream", "--agent", "a1", "--input", "q"}, tt.args...)
			ta, err := runWithServer(t, ms, "", args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, ExitCode(err))

			results := decodeOutput[[]streamResult](t, ta)
			require.Len(t, results, 1)
			assert.Equal(t, tt.outcome, results[0].Outcome)
		})
	}
}

func TestStreamTimeoutFromConfig(t *testing.T) {
	ms := seclaitest.NewMockServer()
	defer ms.Close()
	ms.SetStream("a1", seclaitest.Script{Hang: true})

	cfgPath := filepath.Join(t.TempDir(), "seclai.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"api_key: sk-test\nbase_url: %s\nstream:\n  timeout: 50ms\n", ms.URL())), 0o600))

	ta := newTestApp(t)
	start := time.Now()
	err := ta.run("--config", cfgPath, "--journal", "", "runs", "stream", "--agent", "a1", "--input", "q")
	require.Error(t, err)
	assert.Equal(t, exitTimeout, ExitCode(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMissingConfigFile(t *testing.T) {
	ta := newTestApp(t)
	err := ta.run("--config", filepath.Join(t.TempDir(), "nope.yaml"), "runs", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestInvalidFlags(t *testing.T) {
	ta := newTestApp(t)
	err := ta.run("--format", "xml", "runs", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	ta = newTestApp(t)
	err = ta.run("--log-level", "loud", "runs", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain", errors.New("x"), exitError},
		{"exit coder", cli.Exit("", exitRunFailed), exitRunFailed},
		{"stream timeout", &seclai.StreamError{Kind: seclai.StreamTimeout}, exitTimeout},
		{"stream cancelled", &seclai.StreamError{Kind: seclai.StreamCancelled}, exitCancelled},
		{"stream transport", &seclai.StreamError{Kind: seclai.StreamTransport}, exitError},
		{"context canceled", fmt.Errorf("wrap: %w", context.Canceled), exitCancelled},
		{"api error", &seclai.APIError{StatusCode: 500, Err: seclai.ErrServer}, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestParseMetadata(t *testing.T) {
	md, err := parseMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, md)

	md, err = parseMetadata([]string{"a=1", " b =x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "x=y", "c": ""}, md)

	for _, bad := range []string{"novalue", "=v", " =v"} {
		_, err := parseMetadata([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	_, ok := retryPolicy(config.RetryConfig{})
	assert.False(t, ok)

	zero := 0
	p, ok := retryPolicy(config.RetryConfig{
		MaxRetries:   &zero,
		InitialDelay: config.Duration{Duration: 10 * time.Millisecond},
	})
	require.True(t, ok)
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, p.InitialDelay)
	assert.Equal(t, seclai.DefaultRetryPolicy().MaxDelay, p.MaxDelay)
}
