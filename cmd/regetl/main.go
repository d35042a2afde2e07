// Command regetl harvests business-registry rows from a paginated search
// page into a record store, skipping records stored by earlier runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"regetl/internal/config"
	"regetl/internal/driver"
	"regetl/internal/harvest"
	"regetl/internal/logging"
	"regetl/internal/metrics"
	"regetl/internal/metrics/datadog"
	"regetl/internal/metrics/prompush"
	"regetl/internal/paginate"
	"regetl/internal/store"
	"regetl/internal/tablehtml"

	// register all backends with the store factory.
	// config specifies which to use but we build in support for all of them.
	_ "regetl/internal/store/all"
)

// deps are external seams for testability.
type deps struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Confirm io.Reader // operator confirmation for the manual-challenge gate

	NewDriver func(ctx context.Context, t config.Target, confirm io.Reader, log zerolog.Logger) (driver.Driver, func(), error)
	NewStore  func(ctx context.Context, cfg store.Config) (store.Store, error)
}

// runConfig holds the parsed flags and derived values for a run.
type runConfig struct {
	ConfigPath string

	// store overrides on top of the pipeline config
	StoreKind string
	StoreDSN  string

	MetricsBackend string
	PushgatewayURL string
	DDTagsCSV      string
	FlushEvery     time.Duration

	LogLevel string
	Pretty   bool
	Validate bool
}

// main is intentionally small: it wires real dependencies and exits with a code.
func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Confirm:   os.Stdin,
		NewDriver: newDriver,
		NewStore:  store.New,
	})
	os.Exit(code)
}

// run executes the harvest command and returns an exit code.
//
// Exit codes:
//   - 0: run finished, including graceful stalls and empty result sets.
//   - 1: the run started and then failed (navigation or store error).
//   - 2: configuration/initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.NewDriver == nil || d.NewStore == nil {
		fmt.Fprintln(d.Stderr, "internal error: driver/store factory is nil")
		return 2
	}

	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	p, err := config.Load(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}
	if cfg.StoreKind != "" {
		p.Store.Kind = cfg.StoreKind
	}
	if cfg.StoreDSN != "" {
		p.Store.DSN = cfg.StoreDSN
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(d.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		fmt.Fprintf(d.Stderr, "configuration is invalid: %s\n", cfg.ConfigPath)
		return 2
	}
	if cfg.Validate {
		fmt.Fprintf(d.Stdout, "configuration is valid: %s\n", cfg.ConfigPath)
		return 0
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty, Output: d.Stderr})

	jobName := p.Job
	if jobName == "" {
		jobName = "regetl"
	}

	if closeBackend := setupMetrics(ctx, cfg, jobName, log); closeBackend != nil {
		defer closeBackend()
	}

	st, err := d.NewStore(ctx, store.Config{
		Kind:   p.Store.Kind,
		DSN:    p.Store.DSN,
		Table:  p.Store.Table,
		Logger: log,
	})
	if err != nil {
		fmt.Fprintf(d.Stderr, "open record store: %v\n", err)
		return 2
	}
	defer st.Close()

	drv, closeDriver, err := d.NewDriver(ctx, p.Target, d.Confirm, log)
	if err != nil {
		fmt.Fprintf(d.Stderr, "open page target: %v\n", err)
		return 2
	}
	defer closeDriver()

	sum, err := harvest.Run(ctx, drv, st, log, harvest.Options{
		Job:     jobName,
		PaceMin: time.Duration(p.Pacing.MinMs) * time.Millisecond,
		PaceMax: time.Duration(p.Pacing.MaxMs) * time.Millisecond,
		Paginate: paginate.Options{
			MaxAttempts:   p.Retry.MaxAttempts,
			RetryWait:     time.Duration(p.Retry.WaitMs) * time.Millisecond,
			RenderTimeout: time.Duration(p.Retry.RenderTimeoutMs) * time.Millisecond,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("harvest failed")
		return 1
	}

	fmt.Fprintf(d.Stdout, "pages=%d added=%d duplicate=%d parse_failed=%d\n",
		sum.PagesVisited, sum.RecordsAdded, sum.RecordsSkippedDuplicate, sum.RecordsFailedParse)
	return 0
}

// setupMetrics installs the chosen metrics backend and returns its shutdown
// hook, or nil when metrics stay on the nop backend. Backend init failures
// are logged and leave metrics disabled rather than aborting the run.
func setupMetrics(ctx context.Context, cfg runConfig, jobName string, log zerolog.Logger) func() {
	switch cfg.MetricsBackend {
	case "pushgateway":
		gwURL := cfg.PushgatewayURL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Warn().Err(err).Msg("pushgateway backend init failed; metrics disabled")
			return nil
		}
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn().Err(err).Msg("metrics flush failed")
			}
		}

	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.DDTagsCSV)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       tags,
			FlushEvery: cfg.FlushEvery,
		})
		if err != nil {
			log.Warn().Err(err).Msg("datadog backend init failed; metrics disabled")
			return nil
		}
		metrics.SetBackend(b)
		// Close stops the periodic flush loop and performs a final flush.
		return func() {
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("datadog close/flush failed")
			}
		}

	case "", "none":
		return nil

	default:
		log.Warn().Str("backend", cfg.MetricsBackend).Msg("unknown metrics backend; metrics disabled")
		return nil
	}
}

// newDriver builds the page driver named by the target config.
func newDriver(ctx context.Context, t config.Target, confirm io.Reader, log zerolog.Logger) (driver.Driver, func(), error) {
	switch t.Kind {
	case config.TargetChrome:
		c, err := driver.NewChrome(ctx, driver.ChromeOptions{
			URL:         t.URL,
			SearchQuery: t.SearchQuery,
			RowSelector: t.RowSelector,
			Headless:    t.Headless,
			Confirm:     confirm,
			Logger:      log,
		}, tablehtml.ExtractRows)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil

	case config.TargetSnapshot:
		s, err := driver.NewSnapshot(t.SnapshotDir, t.RowSelector, tablehtml.ExtractRows)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown target kind %q", t.Kind)
	}
}

// parseFlags parses command arguments into a validated runConfig.
//
// Errors:
//   - Returns an error for invalid flags.
//   - Does not exit the process (caller decides exit code).
func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("regetl", flag.ContinueOnError)

	// Capture help/usage text instead of writing to stdout.
	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg runConfig
	fs.StringVar(&cfg.ConfigPath, "config", "configs/pipelines/registry.json", "pipeline config JSON path")
	fs.StringVar(&cfg.StoreKind, "store", "", "override store kind from the config (e.g. jsonl, sqlite)")
	fs.StringVar(&cfg.StoreDSN, "out", "", "override store DSN from the config (file path or connection string)")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.StringVar(&cfg.DDTagsCSV, "dd_tags", "", "Extra Datadog tags CSV (e.g. env:prod,service:regetl)")
	fs.DurationVar(&cfg.FlushEvery, "metrics_flush", time.Minute, "Datadog flush interval")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "human-readable log output")
	fs.BoolVar(&cfg.Validate, "validate", false, "validate the configuration and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if cfg.StoreKind != "" && !knownStoreKind(cfg.StoreKind) {
		return runConfig{}, fmt.Errorf("-store %q is not registered (have %v)", cfg.StoreKind, store.Kinds())
	}

	return cfg, nil
}

func knownStoreKind(kind string) bool {
	for _, k := range store.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
