package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	seclai "github.com/seclai/seclai-go"
	"github.com/seclai/seclai-go/internal/config"
	"github.com/seclai/seclai-go/internal/journal"
	"github.com/seclai/seclai-go/internal/telemetry"
)

const envKey = "seclai.env"

// env is the per-invocation state shared by every command. The client and
// journal are built on first use so that commands which need neither do
// not require an API key or touch the journal file.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	errOut io.Writer
	format string

	apiKey       string
	baseURL      string
	apiKeyHeader string
	journalPath  string // empty means in-memory
	httpClient   *http.Client
	tracer       trace.TracerProvider
	metrics      *seclai.Metrics

	clientOnce sync.Once
	client     *seclai.Client
	clientErr  error

	journalOnce sync.Once
	journal     journal.Store
	journalErr  error

	closers []func(context.Context) error
}

func getEnv(c *cli.Context) *env {
	return c.App.Metadata[envKey].(*env)
}

// before builds the env from flags, environment and config file.
func before(version string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}

		var (
			cfg *config.Config
			err error
		)
		if c.IsSet("config") {
			cfg, err = config.Load(c.String("config"))
		} else {
			cfg, err = config.LoadOptional(config.DefaultPath())
		}
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}

		format, err := parseFormat(c.String("format"))
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}

		logger, err := newLogger(firstNonEmpty(c.String("log-level"), cfg.LogLevel, "warn"), c.App.ErrWriter)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}

		e := &env{
			cfg:          cfg,
			logger:       logger,
			out:          c.App.Writer,
			errOut:       c.App.ErrWriter,
			format:       format,
			apiKey:       firstNonEmpty(c.String("api-key"), cfg.APIKey),
			baseURL:      firstNonEmpty(c.String("base-url"), cfg.BaseURL),
			apiKeyHeader: firstNonEmpty(c.String("api-key-header"), cfg.APIKeyHeader),
		}
		switch {
		case c.IsSet("journal"):
			e.journalPath = c.String("journal")
		case cfg.Journal != "":
			e.journalPath = cfg.Journal
		default:
			e.journalPath = config.DefaultJournalPath()
		}
		c.App.Metadata[envKey] = e

		tp, shutdown, err := telemetry.Init(c.Context, telemetry.Options{
			Endpoint:    firstNonEmpty(c.String("otlp-endpoint"), cfg.Telemetry.Endpoint),
			Insecure:    c.Bool("otlp-insecure") || cfg.Telemetry.Insecure,
			ServiceName: "seclai-cli",
			Version:     version,
		})
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		e.tracer = tp
		e.closers = append(e.closers, shutdown)

		base := http.DefaultTransport.(*http.Transport).Clone()
		e.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(base, otelhttp.WithTracerProvider(tp)),
		}

		if addr := firstNonEmpty(c.String("metrics-listen"), cfg.MetricsListen); addr != "" {
			if err := e.serveMetrics(addr); err != nil {
				return cli.Exit(err.Error(), exitError)
			}
		}
		return nil
	}
}

// after releases everything before opened.
func after(c *cli.Context) error {
	e, ok := c.App.Metadata[envKey].(*env)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if e.journal != nil {
		errs = append(errs, e.journal.Close())
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i](ctx))
	}
	_ = e.logger.Sync()
	return errors.Join(errs...)
}

func (e *env) serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := seclai.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	e.metrics = m

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	e.logger.Info("serving metrics", zap.String("addr", addr))
	e.closers = append(e.closers, srv.Shutdown)
	return nil
}

// Client returns the API client, building it on first use.
func (e *env) Client() (*seclai.Client, error) {
	e.clientOnce.Do(func() {
		cfg := seclai.Config{
			APIKey:         e.apiKey,
			BaseURL:        e.baseURL,
			APIKeyHeader:   e.apiKeyHeader,
			HTTPClient:     e.httpClient,
			Logger:         e.logger,
			Metrics:        e.metrics,
			TracerProvider: e.tracer,
			UserAgent:      "seclai-cli",
		}
		if p, ok := retryPolicy(e.cfg.Retry); ok {
			cfg.RetryPolicy = &p
		}
		e.client, e.clientErr = seclai.New(cfg)
	})
	if e.clientErr != nil {
		return nil, cli.Exit(e.clientErr.Error(), exitError)
	}
	return e.client, nil
}

// Journal returns the run journal, opening it on first use.
func (e *env) Journal() (journal.Store, error) {
	e.journalOnce.Do(func() {
		if e.journalPath == "" {
			e.journal = journal.NewMemoryStore()
			return
		}
		store, err := journal.OpenBolt(e.journalPath)
		if err != nil {
			e.journalErr = err
			return
		}
		e.journal = store
	})
	return e.journal, e.journalErr
}

func retryPolicy(rc config.RetryConfig) (seclai.RetryPolicy, bool) {
	if rc.MaxRetries == nil && rc.InitialDelay.Duration == 0 && rc.MaxDelay.Duration == 0 {
		return seclai.RetryPolicy{}, false
	}
	p := seclai.DefaultRetryPolicy()
	if rc.MaxRetries != nil {
		p.MaxRetries = *rc.MaxRetries
	}
	if rc.InitialDelay.Duration > 0 {
		p.InitialDelay = rc.InitialDelay.Duration
	}
	if rc.MaxDelay.Duration > 0 {
		p.MaxDelay = rc.MaxDelay.Duration
	}
	return p, true
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
