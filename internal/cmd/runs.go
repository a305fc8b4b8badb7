package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	seclai "github.com/seclai/seclai-go"
	"github.com/seclai/seclai-go/internal/journal"
)

const defaultStreamConcurrency = 4

// RunsCommand returns the runs command with subcommands.
func RunsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Start, stream and inspect agent runs",
		Subcommands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start a run and return immediately",
				Flags: []cli.Flag{
					agentFlag,
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Run input"},
					metadataFlag,
					&cli.BoolFlag{Name: "priority", Usage: "Run with priority"},
				},
				Action: startRunAction,
			},
			{
				Name:   "list",
				Usage:  "List the runs of an agent",
				Flags:  append([]cli.Flag{agentFlag}, pageFlags()...),
				Action: listRunsAction,
			},
			{
				Name:   "get",
				Usage:  "Show a run",
				Flags:  []cli.Flag{agentFlag, runFlag},
				Action: getRunAction,
			},
			{
				Name:   "delete",
				Usage:  "Cancel and delete a run",
				Flags:  []cli.Flag{agentFlag, runFlag},
				Action: deleteRunAction,
			},
			{
				Name:  "stream",
				Usage: "Start runs and wait for their final state",
				Flags: []cli.Flag{
					agentFlag,
					&cli.StringSliceFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Run input; repeat to start several runs concurrently",
						Required: true,
					},
					&cli.DurationFlag{Name: "timeout", Usage: "Per-run time limit, e.g. 5m"},
					&cli.IntFlag{Name: "concurrency", Usage: "Maximum runs streamed at once"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not print progress to stderr"},
					metadataFlag,
				},
				Action: streamRunsAction,
			},
			{
				Name:  "history",
				Usage: "List streamed runs recorded in the journal",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum entries (0 = all)", Value: 20},
					&cli.StringFlag{Name: "id", Usage: "Show a single journal entry"},
				},
				Action: historyAction,
			},
		},
	}
}

func startRunAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}
	metadata, err := parseMetadata(c.StringSlice("metadata"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	req := seclai.AgentRunRequest{Input: c.String("input"), Metadata: metadata}
	if c.IsSet("priority") {
		p := c.Bool("priority")
		req.Priority = &p
	}
	run, err := client.RunAgent(c.Context, c.String("agent"), req)
	if err != nil {
		return exitWith(err)
	}
	return e.render(run)
}

func listRunsAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}

	agentID := c.String("agent")
	if c.Bool("all") {
		var all []seclai.AgentRun
		for run, err := range client.AllAgentRuns(c.Context, agentID, c.Int("limit")) {
			if err != nil {
				return exitWith(err)
			}
			all = append(all, run)
		}
		return e.render(all)
	}

	list, err := client.ListAgentRuns(c.Context, agentID, &seclai.PageOptions{
		Page:  c.Int("page"),
		Limit: c.Int("limit"),
	})
	if err != nil {
		return exitWith(err)
	}
	return e.render(list)
}

func getRunAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}
	run, err := client.GetAgentRun(c.Context, c.String("agent"), c.String("run"))
	if err != nil {
		return exitWith(err)
	}
	return e.render(run)
}

func deleteRunAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}
	run, err := client.DeleteAgentRun(c.Context, c.String("agent"), c.String("run"))
	if err != nil {
		return exitWith(err)
	}
	return e.render(run)
}

// streamResult is the output record of one streamed input.
type streamResult struct {
	Input     string           `json:"input"`
	Outcome   string           `json:"outcome"`
	State     *seclai.RunState `json:"state,omitempty"`
	Error     string           `json:"error,omitempty"`
	JournalID uuid.UUID        `json:"journal_id"`
}

func streamRunsAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}
	store, err := e.Journal()
	if err != nil {
		return cli.Exit(fmt.Sprintf("open journal: %v", err), exitError)
	}
	metadata, err := parseMetadata(c.StringSlice("metadata"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	var opts []seclai.StreamOption
	timeout := c.Duration("timeout")
	if !c.IsSet("timeout") {
		timeout = e.cfg.Stream.Timeout.Duration
	}
	if timeout > 0 {
		opts = append(opts, seclai.WithStreamTimeout(timeout))
	}
	if n := e.cfg.Stream.MaxFrameBuffer; n > 0 {
		opts = append(opts, seclai.WithMaxFrameBuffer(n))
	}

	concurrency := c.Int("concurrency")
	if concurrency <= 0 {
		concurrency = e.cfg.Stream.Concurrency
	}
	if concurrency <= 0 {
		concurrency = defaultStreamConcurrency
	}

	s := &streamer{
		client:   client,
		store:    store,
		logger:   e.logger,
		agentID:  c.String("agent"),
		metadata: metadata,
		opts:     opts,
	}
	if !c.Bool("quiet") {
		s.progress = &syncWriter{w: e.errOut}
	}

	inputs := c.StringSlice("input")
	results := make([]streamResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, input := range inputs {
		g.Go(func() error {
			res, err := s.stream(c, i, input)
			results[i] = res
			return err
		})
	}
	waitErr := g.Wait()

	if err := e.render(results); err != nil {
		return err
	}
	if waitErr != nil {
		return exitWith(waitErr)
	}
	for _, r := range results {
		if r.State != nil && r.State.Status == seclai.RunStatusFailed {
			return cli.Exit("", exitRunFailed)
		}
	}
	return nil
}

type streamer struct {
	client   *seclai.Client
	store    journal.Store
	logger   *zap.Logger
	progress *syncWriter
	agentID  string
	metadata map[string]any
	opts     []seclai.StreamOption
}

// stream runs one input to completion and records it in the journal. The
// returned result is filled in even when err is non-nil.
func (s *streamer) stream(c *cli.Context, index int, input string) (streamResult, error) {
	opts := s.opts
	if s.progress != nil {
		opts = append(opts[:len(opts):len(opts)], seclai.WithProgress(func(st seclai.RunState) {
			fmt.Fprintf(s.progress, "[%d] %s %s\n", index, displayRunID(st.RunID), st.Status)
		}))
	}

	start := time.Now()
	state, err := s.client.StreamAgentRun(c.Context, s.agentID, seclai.AgentRunStreamRequest{
		Input:    input,
		Metadata: s.metadata,
	}, opts...)

	entry := journal.Entry{
		AgentID:  s.agentID,
		Input:    input,
		Duration: time.Since(start),
	}
	result := streamResult{Input: input}

	if err != nil {
		entry.Outcome = streamOutcome(err)
		entry.Error = err.Error()
		var se *seclai.StreamError
		if errors.As(err, &se) {
			entry.RunID = se.RunID
		}
		result.Outcome = entry.Outcome
		result.Error = entry.Error
	} else {
		entry.RunID = state.RunID
		entry.Status = state.Status.String()
		entry.Output = state.Output
		entry.Error = state.Error
		entry.Outcome = state.Status.String()
		result.Outcome = entry.Outcome
		result.State = state
	}

	stored, jerr := s.store.Put(entry)
	if jerr != nil {
		s.logger.Warn("journal write failed", zap.String("input", input), zap.Error(jerr))
	} else {
		result.JournalID = stored.ID
	}
	return result, err
}

func streamOutcome(err error) string {
	var se *seclai.StreamError
	if errors.As(err, &se) {
		return se.Kind.String()
	}
	return "error"
}

func displayRunID(id string) string {
	if id == "" {
		return "-"
	}
	return id
}

func historyAction(c *cli.Context) error {
	e := getEnv(c)
	store, err := e.Journal()
	if err != nil {
		return cli.Exit(fmt.Sprintf("open journal: %v", err), exitError)
	}

	if raw := c.String("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid journal id %q", raw), exitError)
		}
		entry, err := store.Get(id)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		return e.render(entry)
	}

	entries, err := store.List(c.Int("limit"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return e.render(entries)
}

// parseMetadata turns key=value pairs into a run metadata map.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q: want key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
